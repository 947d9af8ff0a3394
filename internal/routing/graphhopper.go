package routing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/geo"
	"github.com/richxcame/trip-quote/pkg/httpclient"
	"github.com/richxcame/trip-quote/pkg/resilience"
)

const (
	ProviderGraphHopper = "graphhopper"

	graphHopperBaseURL  = "https://graphhopper.com/api/1"
	graphHopperEndpoint = "/route"
)

// Hints GraphHopper attaches to 400 responses when no path exists
var graphHopperNoPathHints = []string{
	"PointNotFoundException",
	"ConnectionNotFoundException",
	"PointOutOfBoundsException",
}

type graphHopperRequest struct {
	Points        [][]float64  `json:"points"`
	Profile       string       `json:"profile"`
	Locale        string       `json:"locale,omitempty"`
	CalcPoints    bool         `json:"calc_points"`
	PointsEncoded bool         `json:"points_encoded"`
	CustomModel   *CustomModel `json:"custom_model,omitempty"`
}

type graphHopperResponse struct {
	Paths []struct {
		Distance float64 `json:"distance"`
		Time     float64 `json:"time"`
		Points   struct {
			Type        string      `json:"type"`
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"points"`
	} `json:"paths"`
}

type graphHopperError struct {
	Message string `json:"message"`
	Hints   []struct {
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"hints"`
}

// GraphHopper routes with the GraphHopper Directions API and honours custom models
type GraphHopper struct {
	upstream
	client *httpclient.Client
}

// NewGraphHopper creates a GraphHopper router
func NewGraphHopper(cfg config.RoutingConfig, timeout time.Duration, breaker *resilience.CircuitBreaker) *GraphHopper {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = graphHopperBaseURL
	}

	var opts []httpclient.Option
	if cfg.APIKey != "" {
		opts = append(opts, httpclient.WithHeader("Authorization", "key "+cfg.APIKey))
	}

	return &GraphHopper{
		upstream: upstream{provider: ProviderGraphHopper, timeout: timeout, breaker: breaker},
		client:   httpclient.NewClient(baseURL, timeout, opts...),
	}
}

// Name returns the provider name
func (g *GraphHopper) Name() string {
	return ProviderGraphHopper
}

// HealthCheck reports the upstream as unhealthy while its breaker is open
func (g *GraphHopper) HealthCheck(ctx context.Context) error {
	return g.healthCheck(ctx)
}

// Route requests a path between from and to
func (g *GraphHopper) Route(ctx context.Context, from, to geo.Coordinate, opts Options) (*Result, error) {
	return g.route(ctx, from, to, opts, g.call)
}

func (g *GraphHopper) call(ctx context.Context, from, to geo.Coordinate, opts Options) (*Result, error) {
	req := graphHopperRequest{
		Points:        [][]float64{from.LonLat(), to.LonLat()},
		Profile:       opts.Profile,
		Locale:        opts.Locale,
		CalcPoints:    true,
		PointsEncoded: false,
		CustomModel:   opts.CustomModel,
	}

	body, err := g.client.Post(ctx, graphHopperEndpoint, req, nil)
	if err != nil {
		if isGraphHopperNoPath(err) {
			return nil, noPath("%v", err)
		}
		return nil, err
	}

	var resp graphHopperResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, invalidResponse("decode graphhopper response: %v", err)
	}

	if len(resp.Paths) == 0 {
		return nil, noPath("graphhopper returned no paths")
	}

	best := resp.Paths[0]
	path, err := pathFromLonLat(best.Points.Coordinates)
	if err != nil {
		return nil, err
	}

	return &Result{
		Path:            path,
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Time / 1000,
	}, nil
}

func isGraphHopperNoPath(err error) bool {
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadRequest {
		return false
	}

	var payload graphHopperError
	if json.Unmarshal([]byte(httpErr.Body), &payload) != nil {
		return false
	}
	for _, hint := range payload.Hints {
		for _, marker := range graphHopperNoPathHints {
			if strings.Contains(hint.Details, marker) {
				return true
			}
		}
	}
	return strings.Contains(strings.ToLower(payload.Message), "connection between locations not found")
}
