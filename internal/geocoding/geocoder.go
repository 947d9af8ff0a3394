package geocoding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/geo"
	"github.com/richxcame/trip-quote/pkg/logger"
	"github.com/richxcame/trip-quote/pkg/resilience"
	"github.com/richxcame/trip-quote/pkg/tracing"
	"go.uber.org/zap"
)

// Geocoder resolves a free-text place into a coordinate.
// Implementations take the top-ranked candidate and never retry.
type Geocoder interface {
	Resolve(ctx context.Context, query string) (geo.Coordinate, error)
	HealthCheck(ctx context.Context) error
	Name() string
}

// New returns the configured geocoding provider
func New(cfg *config.Config) (Geocoder, error) {
	switch cfg.Geocoding.Provider {
	case "", ProviderOpenCage:
		return NewOpenCage(cfg.Geocoding, cfg.Timeout.GeocodeTimeout(), newBreaker(cfg, ProviderOpenCage)), nil
	case ProviderGoogle:
		return NewGoogle(cfg.Geocoding, cfg.Timeout.GeocodeTimeout(), newBreaker(cfg, ProviderGoogle))
	default:
		return nil, fmt.Errorf("unknown geocoding provider %q", cfg.Geocoding.Provider)
	}
}

func newBreaker(cfg *config.Config, provider string) *resilience.CircuitBreaker {
	return resilience.NewUpstreamBreaker(cfg.Resilience.CircuitBreaker, "geocoding-"+provider, func(err error) bool {
		return !countsAgainstBreaker(err)
	})
}

type lookupFunc func(ctx context.Context, query string) (geo.Coordinate, error)

// upstream holds what every provider shares: the per-call timeout and the breaker
type upstream struct {
	provider string
	timeout  time.Duration
	breaker  *resilience.CircuitBreaker
}

func (u upstream) resolve(ctx context.Context, query string, lookup lookupFunc) (geo.Coordinate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return geo.Coordinate{}, &Error{Reason: ReasonNotFound, Provider: u.provider, Err: ErrEmptyQuery}
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	var coord geo.Coordinate
	err := tracing.UpstreamCall(ctx, u.provider, "geocode", func(ctx context.Context) error {
		result, err := u.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return lookup(ctx, query)
		})
		if err != nil {
			return err
		}
		coord = result.(geo.Coordinate)
		return nil
	})
	if err != nil {
		gerr := classify(u.provider, query, err)
		logger.WithContext(ctx).Debug("geocoding failed",
			zap.String("provider", u.provider),
			zap.String("reason", string(gerr.Reason)),
			zap.Error(err),
		)
		return geo.Coordinate{}, gerr
	}

	if err := coord.Validate(); err != nil {
		return geo.Coordinate{}, classify(u.provider, query, invalidResponse("top candidate: %v", err))
	}

	return coord, nil
}

func (u upstream) healthCheck(context.Context) error {
	if !u.breaker.Allow() {
		return fmt.Errorf("%s circuit breaker is %s", u.provider, u.breaker.State())
	}
	return nil
}
