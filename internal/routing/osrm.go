package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/geo"
	"github.com/richxcame/trip-quote/pkg/httpclient"
	"github.com/richxcame/trip-quote/pkg/logger"
	"github.com/richxcame/trip-quote/pkg/resilience"
	"go.uber.org/zap"
)

const (
	ProviderOSRM = "osrm"

	osrmBaseURL = "https://router.project-osrm.org"
)

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// OSRM routes with an OSRM HTTP server. Custom models are not supported and are ignored.
type OSRM struct {
	upstream
	client *httpclient.Client
}

// NewOSRM creates an OSRM router
func NewOSRM(cfg config.RoutingConfig, timeout time.Duration, breaker *resilience.CircuitBreaker) *OSRM {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = osrmBaseURL
	}

	return &OSRM{
		upstream: upstream{provider: ProviderOSRM, timeout: timeout, breaker: breaker},
		client:   httpclient.NewClient(baseURL, timeout),
	}
}

// Name returns the provider name
func (o *OSRM) Name() string {
	return ProviderOSRM
}

// HealthCheck reports the upstream as unhealthy while its breaker is open
func (o *OSRM) HealthCheck(ctx context.Context) error {
	return o.healthCheck(ctx)
}

// Route requests a path between from and to
func (o *OSRM) Route(ctx context.Context, from, to geo.Coordinate, opts Options) (*Result, error) {
	return o.route(ctx, from, to, opts, o.call)
}

func (o *OSRM) call(ctx context.Context, from, to geo.Coordinate, opts Options) (*Result, error) {
	if opts.CustomModel != nil {
		logger.WithContext(ctx).Debug("osrm ignores custom model", zap.Int("rules", len(opts.CustomModel.Priority)))
	}

	path := fmt.Sprintf("/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		osrmProfile(opts.Profile), from.Longitude, from.Latitude, to.Longitude, to.Latitude)

	body, err := o.client.Get(ctx, path, nil)
	if err != nil {
		// OSRM reports NoRoute and friends as 400 with a JSON code
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) {
			var resp osrmResponse
			if json.Unmarshal([]byte(httpErr.Body), &resp) == nil && isOSRMNoPath(resp.Code) {
				return nil, noPath("osrm %s: %s", resp.Code, resp.Message)
			}
		}
		return nil, err
	}

	var resp osrmResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, invalidResponse("decode osrm response: %v", err)
	}

	if isOSRMNoPath(resp.Code) || (resp.Code == "Ok" && len(resp.Routes) == 0) {
		return nil, noPath("osrm %s", resp.Code)
	}
	if resp.Code != "Ok" {
		return nil, invalidResponse("osrm code %q: %s", resp.Code, resp.Message)
	}

	best := resp.Routes[0]
	coords, err := pathFromLonLat(best.Geometry.Coordinates)
	if err != nil {
		return nil, err
	}

	return &Result{
		Path:            coords,
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
	}, nil
}

func isOSRMNoPath(code string) bool {
	switch code {
	case "NoRoute", "NoSegment":
		return true
	}
	return false
}

// osrmProfile maps our profile names onto OSRM's
func osrmProfile(profile string) string {
	switch profile {
	case "", DefaultProfile:
		return "driving"
	default:
		return profile
	}
}
