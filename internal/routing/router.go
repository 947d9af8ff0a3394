package routing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/geo"
	"github.com/richxcame/trip-quote/pkg/logger"
	"github.com/richxcame/trip-quote/pkg/resilience"
	"github.com/richxcame/trip-quote/pkg/tracing"
	"go.uber.org/zap"
)

// DefaultProfile is the only travel mode quotes are priced for
const DefaultProfile = "car"

// Options tunes a route request
type Options struct {
	Profile     string
	Locale      string
	CustomModel *CustomModel
}

// Result is a driving path with its length and travel time.
// Path is always in (latitude, longitude) order.
type Result struct {
	Path            []geo.Coordinate `json:"path"`
	DistanceMeters  float64          `json:"distance_meters"`
	DurationSeconds float64          `json:"duration_seconds"`
}

// DistanceKm returns the route length in kilometres
func (r *Result) DistanceKm() float64 {
	return r.DistanceMeters / 1000
}

// DurationMinutes returns the travel time in minutes
func (r *Result) DurationMinutes() float64 {
	return r.DurationSeconds / 60
}

func (r *Result) validate() error {
	if len(r.Path) < 2 {
		return fmt.Errorf("path has %d points, need at least 2", len(r.Path))
	}
	if !finiteNonNegative(r.DistanceMeters) {
		return fmt.Errorf("distance %v is not a non-negative number", r.DistanceMeters)
	}
	if !finiteNonNegative(r.DurationSeconds) {
		return fmt.Errorf("duration %v is not a non-negative number", r.DurationSeconds)
	}
	for i, c := range r.Path {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("path point %d: %w", i, err)
		}
	}
	return nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Router computes a driving route between two coordinates
type Router interface {
	Route(ctx context.Context, from, to geo.Coordinate, opts Options) (*Result, error)
	HealthCheck(ctx context.Context) error
	Name() string
}

// New returns the configured routing provider
func New(cfg *config.Config) (Router, error) {
	timeout := cfg.Timeout.RouteTimeout()
	switch cfg.Routing.Provider {
	case "", ProviderGraphHopper:
		return NewGraphHopper(cfg.Routing, timeout, newBreaker(cfg, ProviderGraphHopper)), nil
	case ProviderOSRM:
		return NewOSRM(cfg.Routing, timeout, newBreaker(cfg, ProviderOSRM)), nil
	case ProviderGoogle:
		return NewGoogle(cfg.Routing, timeout, newBreaker(cfg, ProviderGoogle))
	default:
		return nil, fmt.Errorf("unknown routing provider %q", cfg.Routing.Provider)
	}
}

// OptionsFromConfig builds request options, loading the custom model from
// ROUTING_CUSTOM_MODEL, then ROUTING_CUSTOM_MODEL_FILE, then the default model.
func OptionsFromConfig(cfg config.RoutingConfig) (Options, error) {
	opts := Options{Profile: cfg.Profile, Locale: cfg.Locale}
	if opts.Profile == "" {
		opts.Profile = DefaultProfile
	}

	switch {
	case cfg.CustomModelJSON != "":
		model, err := ParseCustomModel([]byte(cfg.CustomModelJSON))
		if err != nil {
			return Options{}, fmt.Errorf("ROUTING_CUSTOM_MODEL: %w", err)
		}
		opts.CustomModel = model
	case cfg.CustomModelFile != "":
		model, err := LoadCustomModel(cfg.CustomModelFile)
		if err != nil {
			return Options{}, fmt.Errorf("ROUTING_CUSTOM_MODEL_FILE: %w", err)
		}
		opts.CustomModel = model
	default:
		opts.CustomModel = DefaultCustomModel()
	}

	return opts, nil
}

func newBreaker(cfg *config.Config, provider string) *resilience.CircuitBreaker {
	return resilience.NewUpstreamBreaker(cfg.Resilience.CircuitBreaker, "routing-"+provider, func(err error) bool {
		return !countsAgainstBreaker(err)
	})
}

type routeFunc func(ctx context.Context, from, to geo.Coordinate, opts Options) (*Result, error)

type upstream struct {
	provider string
	timeout  time.Duration
	breaker  *resilience.CircuitBreaker
}

func (u upstream) route(ctx context.Context, from, to geo.Coordinate, opts Options, call routeFunc) (*Result, error) {
	if opts.Profile == "" {
		opts.Profile = DefaultProfile
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	var result *Result
	err := tracing.UpstreamCall(ctx, u.provider, "route", func(ctx context.Context) error {
		out, err := u.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return call(ctx, from, to, opts)
		})
		if err != nil {
			return err
		}
		result = out.(*Result)
		return nil
	})
	if err != nil {
		rerr := classify(u.provider, err)
		logger.WithContext(ctx).Debug("routing failed",
			zap.String("provider", u.provider),
			zap.String("reason", string(rerr.Reason)),
			zap.Error(err),
		)
		return nil, rerr
	}

	if err := result.validate(); err != nil {
		return nil, classify(u.provider, invalidResponse("%v", err))
	}

	return result, nil
}

func (u upstream) healthCheck(context.Context) error {
	if !u.breaker.Allow() {
		return fmt.Errorf("%s circuit breaker is %s", u.provider, u.breaker.State())
	}
	return nil
}

// pathFromLonLat flips GeoJSON [lon, lat] pairs into coordinates
func pathFromLonLat(pairs [][]float64) ([]geo.Coordinate, error) {
	path := make([]geo.Coordinate, 0, len(pairs))
	for i, pair := range pairs {
		c, err := geo.FromLonLat(pair)
		if err != nil {
			return nil, invalidResponse("point %d: %v", i, err)
		}
		path = append(path, c)
	}
	return path, nil
}
