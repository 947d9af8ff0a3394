package command

import (
	"fmt"
	"os"

	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	cliName = "quotectl"
	version = "1.0.0"
)

var rootCmd = &cobra.Command{
	Use:   cliName,
	Short: "Trip fare quotes from the terminal",
	Long: `Trip fare quotes from the terminal.
The quote pipeline runs in-process with the same providers as the quote
API: places are geocoded, a driving route is computed between them and
the fare is estimated from the route distance and duration. Providers
and keys are read from the environment (or a .env file) exactly like
the server does.`,
	SilenceUsage:      true,
	PersistentPreRunE: initLogger,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogger(_ *cobra.Command, _ []string) error {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "production"
	}
	if err := logger.Init(env); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cliName)
	if err != nil {
		return nil, fmt.Errorf("config.Load(%q): %w", cliName, err)
	}
	return cfg, nil
}
