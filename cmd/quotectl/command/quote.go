package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/kr/pretty"
	"github.com/richxcame/trip-quote/internal/fare"
	"github.com/richxcame/trip-quote/internal/geocoding"
	"github.com/richxcame/trip-quote/internal/quote"
	"github.com/richxcame/trip-quote/internal/routing"
	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/geo"
	"github.com/richxcame/trip-quote/pkg/resilience"
	"github.com/richxcame/trip-quote/pkg/validation"
	"github.com/spf13/cobra"
)

var quoteOpts struct {
	pickup      string
	dropoff     string
	pickupTime  string
	passengers  int
	customModel string
	geocoder    string
	router      string
	retries     int
	verbose     bool
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Compute a fare quote between two places",
	Long: `Compute a fare quote between two places.
Pickup and dropoff accept either a free-text place ("Penn Station, NYC")
or a "latitude,longitude" pair which skips geocoding. The pickup time
uses the "YYYY-MM-DD HH:MM:SS" layout.
Only failures caused by an unavailable upstream are retried, and only
when --retries is greater than zero.`,
	Example: `  quotectl quote --pickup "Penn Station, NYC" --dropoff "Central Park, NYC" \
    --time "2025-03-01 09:30:00" --passengers 2`,
	Args: cobra.NoArgs,
	RunE: runQuote,
}

func init() {
	flags := quoteCmd.Flags()
	flags.StringVar(&quoteOpts.pickup, "pickup", "", "pickup place or latitude,longitude")
	flags.StringVar(&quoteOpts.dropoff, "dropoff", "", "dropoff place or latitude,longitude")
	flags.StringVar(&quoteOpts.pickupTime, "time", "", "pickup time (YYYY-MM-DD HH:MM:SS)")
	flags.IntVar(&quoteOpts.passengers, "passengers", 1, "passenger count (1-8)")
	flags.StringVar(&quoteOpts.customModel, "custom-model", "", "routing custom model file (YAML or JSON)")
	flags.StringVar(&quoteOpts.geocoder, "geocoder", "", "geocoding provider override (opencage, google)")
	flags.StringVar(&quoteOpts.router, "router", "", "routing provider override (graphhopper, osrm, google)")
	flags.IntVar(&quoteOpts.retries, "retries", 0, "extra attempts when an upstream is unavailable")
	flags.BoolVarP(&quoteOpts.verbose, "verbose", "v", false, "dump the full quote including the route path")
	_ = quoteCmd.MarkFlagRequired("pickup")
	_ = quoteCmd.MarkFlagRequired("dropoff")
	_ = quoteCmd.MarkFlagRequired("time")

	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyOverrides(cfg); err != nil {
		return err
	}

	svc, err := buildService(cfg)
	if err != nil {
		return err
	}

	req := quote.TripRequest{
		Pickup:         parseLocation(quoteOpts.pickup),
		Dropoff:        parseLocation(quoteOpts.dropoff),
		PickupTime:     quoteOpts.pickupTime,
		PassengerCount: quoteOpts.passengers,
	}

	result, err := quoteWithRetry(ctx, svc, req, quoteOpts.retries)
	if err != nil {
		var failure *quote.Failure
		if errors.As(err, &failure) {
			printFailure(cmd.ErrOrStderr(), failure)
		}
		return err
	}

	printResult(cmd.OutOrStdout(), result, quoteOpts.verbose)
	return nil
}

func applyOverrides(cfg *config.Config) error {
	if quoteOpts.geocoder != "" {
		if err := validation.Validate.Var(quoteOpts.geocoder, "geocoding_provider"); err != nil {
			return fmt.Errorf("--geocoder %q is not a known geocoding provider", quoteOpts.geocoder)
		}
		cfg.Geocoding.Provider = strings.ToLower(strings.TrimSpace(quoteOpts.geocoder))
	}
	if quoteOpts.router != "" {
		if err := validation.Validate.Var(quoteOpts.router, "routing_provider"); err != nil {
			return fmt.Errorf("--router %q is not a known routing provider", quoteOpts.router)
		}
		cfg.Routing.Provider = strings.ToLower(strings.TrimSpace(quoteOpts.router))
	}
	if quoteOpts.customModel != "" {
		cfg.Routing.CustomModelFile = quoteOpts.customModel
		cfg.Routing.CustomModelJSON = ""
	}
	return nil
}

func buildService(cfg *config.Config) (*quote.Service, error) {
	geocoder, err := geocoding.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create geocoder: %w", err)
	}
	router, err := routing.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	opts, err := routing.OptionsFromConfig(cfg.Routing)
	if err != nil {
		return nil, fmt.Errorf("load routing options: %w", err)
	}
	estimator, err := fare.NewEstimator(cfg)
	if err != nil {
		return nil, fmt.Errorf("create fare estimator: %w", err)
	}

	return quote.NewService(quote.Dependencies{
		Geocoder:     geocoder,
		Router:       router,
		Estimator:    estimator,
		RouteOptions: opts,
	}), nil
}

// quoter is the part of quote.Service the CLI drives
type quoter interface {
	Quote(ctx context.Context, req quote.TripRequest) (*quote.Result, *quote.Failure)
}

// quoteWithRetry resubmits the same request while the failure is service_unavailable
func quoteWithRetry(ctx context.Context, svc quoter, req quote.TripRequest, retries int) (*quote.Result, error) {
	retryCfg := resilience.InteractiveRetryConfig(retries + 1)
	retryCfg.RetryableChecker = retryable

	return resilience.RetryValue(ctx, retryCfg, "quotectl.quote", func(ctx context.Context) (*quote.Result, error) {
		result, failure := svc.Quote(ctx, req)
		if failure != nil {
			return nil, failure
		}
		return result, nil
	})
}

func retryable(err error) bool {
	var failure *quote.Failure
	return errors.As(err, &failure) && failure.Reason == quote.ReasonServiceUnavailable
}

// parseLocation treats "lat,lon" as a coordinate and anything else as a place query
func parseLocation(raw string) quote.Location {
	parts := strings.Split(raw, ",")
	if len(parts) == 2 {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if latErr == nil && lonErr == nil {
			if c, err := geo.NewCoordinate(lat, lon); err == nil {
				return quote.CoordinateLocation(c)
			}
		}
	}
	return quote.PlaceLocation(raw)
}

func printResult(w io.Writer, r *quote.Result, verbose bool) {
	if verbose {
		fmt.Fprintf(w, "%# v\n", pretty.Formatter(r))
		return
	}
	fmt.Fprintf(w, "Pickup:     %s (%s)\n", r.Pickup, r.PickupCoord)
	fmt.Fprintf(w, "Dropoff:    %s (%s)\n", r.Dropoff, r.DropoffCoord)
	fmt.Fprintf(w, "Distance:   %.2f km\n", r.DistanceKm)
	fmt.Fprintf(w, "Duration:   %.1f min\n", r.DurationMin)
	fmt.Fprintf(w, "Passengers: %d\n", r.PassengerCount)
	fmt.Fprintf(w, "Fare:       %.2f %s\n", r.Fare, r.Currency)
}

func printFailure(w io.Writer, f *quote.Failure) {
	fmt.Fprintf(w, "stage:  %s\nreason: %s\n", f.Stage, f.Reason)
	for field, msg := range f.Fields {
		fmt.Fprintf(w, "  %s: %s\n", field, msg)
	}
}
