package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/richxcame/trip-quote/pkg/eventbus"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream quote events published by the quote API",
	Long: `Stream quote events published by the quote API.
Connects to NATS (NATS_URL) and prints every quotes.computed and
quotes.failed event until interrupted. Only events published after the
command starts are shown.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	busCfg := eventbus.DefaultConfig()
	busCfg.URL = cfg.EventBus.URL
	busCfg.Name = cliName
	busCfg.StreamName = cfg.EventBus.StreamName

	bus, err := eventbus.New(ctx, busCfg)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", busCfg.URL, err)
	}
	defer bus.Close()

	out := cmd.OutOrStdout()
	if err := bus.Subscribe(ctx, eventbus.SubjectQuotesAll, "", func(_ context.Context, event *eventbus.Event) error {
		return printEvent(out, event)
	}); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

func printEvent(w io.Writer, event *eventbus.Event) error {
	switch event.Type {
	case eventbus.SubjectQuoteComputed:
		var data eventbus.QuoteComputedData
		if err := event.Decode(&data); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s computed session=%s %.2f km %.1f min fare=%.2f %s\n",
			event.Timestamp.Format("15:04:05"), data.SessionID,
			data.DistanceKm, data.DurationMin, data.Fare, data.Currency)
	case eventbus.SubjectQuoteFailed:
		var data eventbus.QuoteFailedData
		if err := event.Decode(&data); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s failed   session=%s stage=%s reason=%s: %s\n",
			event.Timestamp.Format("15:04:05"), data.SessionID,
			data.Stage, data.Reason, data.Message)
	default:
		fmt.Fprintf(w, "%s %s\n", event.Timestamp.Format("15:04:05"), event.Type)
	}
	return nil
}
