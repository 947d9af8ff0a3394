package geocoding

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

// ProviderGoogle is the Google Geocoding API
const ProviderGoogle = "google"

// Google resolves places with the Google Geocoding API
type Google struct {
	upstream
	client   *maps.Client
	language string
}

// NewGoogle creates a Google geocoder
func NewGoogle(cfg config.GeocodingConfig, timeout time.Duration, breaker *resilience.CircuitBreaker) (*Google, error) {
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
		language: cfg.Language,
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

// Resolve returns the coordinate of the best match for query
func (g *Google) Resolve(ctx context.Context, query string) (geo.Coordinate, error) {
	return g.resolve(ctx, query, g.lookup)
}

func (g *Google) lookup(ctx context.Context, query string) (geo.Coordinate, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  query,
		Language: g.language,
	})
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") {
			return geo.Coordinate{}, notFound(err)
		}
		return geo.Coordinate{}, err
	}

	if len(results) == 0 {
		return geo.Coordinate{}, notFound(nil)
	}

	location := results[0].Geometry.Location
	return geo.Coordinate{Latitude: location.Lat, Longitude: location.Lng}, nil
}
