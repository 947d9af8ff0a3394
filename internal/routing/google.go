package routing

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/geo"
	"github.com/richxcame/trip-quote/pkg/resilience"
	"googlemaps.github.io/maps"
)

// ProviderGoogle is the Google Directions API. Custom models are not supported and are ignored.
const ProviderGoogle = "google"

// Google routes with the Google Directions API
type Google struct {
	upstream
	client *maps.Client
}

// NewGoogle creates a Google Directions router
func NewGoogle(cfg config.RoutingConfig, timeout time.Duration, breaker *resilience.CircuitBreaker) (*Google, error) {
	opts := []maps.ClientOption{
		maps.WithAPIKey(cfg.APIKey),
		maps.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}

	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("google maps client: %w", err)
	}

	return &Google{
		upstream: upstream{provider: ProviderGoogle, timeout: timeout, breaker: breaker},
		client:   client,
	}, nil
}

// Name returns the provider name
func (g *Google) Name() string {
	return ProviderGoogle
}

// HealthCheck reports the upstream as unhealthy while its breaker is open
func (g *Google) HealthCheck(ctx context.Context) error {
	return g.healthCheck(ctx)
}

// Route requests a path between from and to
func (g *Google) Route(ctx context.Context, from, to geo.Coordinate, opts Options) (*Result, error) {
	return g.route(ctx, from, to, opts, g.call)
}

func (g *Google) call(ctx context.Context, from, to geo.Coordinate, opts Options) (*Result, error) {
	routes, _, err := g.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      from.String(),
		Destination: to.String(),
		Mode:        maps.TravelModeDriving,
		Language:    opts.Locale,
	})
	if err != nil {
		if isZeroResults(err) {
			return nil, noPath("google: %v", err)
		}
		return nil, err
	}

	if len(routes) == 0 {
		return nil, noPath("google returned no routes")
	}

	best := routes[0]
	points, err := maps.DecodePolyline(best.OverviewPolyline.Points)
	if err != nil {
		return nil, invalidResponse("decode overview polyline: %v", err)
	}

	path := make([]geo.Coordinate, 0, len(points))
	for _, p := range points {
		path = append(path, geo.Coordinate{Latitude: p.Lat, Longitude: p.Lng})
	}

	result := &Result{Path: path}
	for _, leg := range best.Legs {
		result.DistanceMeters += float64(leg.Distance.Meters)
		result.DurationSeconds += leg.Duration.Seconds()
	}

	return result, nil
}

// isZeroResults matches the "maps: ZERO_RESULTS - ..." error the client builds from a non-OK status
func isZeroResults(err error) bool {
	return strings.Contains(err.Error(), "ZERO_RESULTS")
}
