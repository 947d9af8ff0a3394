package geocoding

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/geo"
	"github.com/richxcame/trip-quote/pkg/httpclient"
	"github.com/richxcame/trip-quote/pkg/resilience"
)

const (
	ProviderOpenCage = "opencage"

	openCageBaseURL  = "https://api.opencagedata.com"
	openCageEndpoint = "/geocode/v1/json"
)

type openCageResponse struct {
	Results []struct {
		Formatted string `json:"formatted"`
		Geometry  *struct {
			Lat *float64 `json:"lat"`
			Lng *float64 `json:"lng"`
		} `json:"geometry"`
	} `json:"results"`
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

// OpenCage resolves places with the OpenCage forward geocoding API
type OpenCage struct {
	upstream
	apiKey   string
	language string
	client   *httpclient.Client
}

// NewOpenCage creates an OpenCage geocoder
func NewOpenCage(cfg config.GeocodingConfig, timeout time.Duration, breaker *resilience.CircuitBreaker) *OpenCage {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openCageBaseURL
	}

	return &OpenCage{
		upstream: upstream{provider: ProviderOpenCage, timeout: timeout, breaker: breaker},
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		client:   httpclient.NewClient(baseURL, timeout),
	}
}

// Name returns the provider name
func (o *OpenCage) Name() string {
	return ProviderOpenCage
}

// HealthCheck reports the upstream as unhealthy while its breaker is open
func (o *OpenCage) HealthCheck(ctx context.Context) error {
	return o.healthCheck(ctx)
}

// Resolve returns the coordinate of the best match for query
func (o *OpenCage) Resolve(ctx context.Context, query string) (geo.Coordinate, error) {
	return o.resolve(ctx, query, o.lookup)
}

func (o *OpenCage) lookup(ctx context.Context, query string) (geo.Coordinate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("key", o.apiKey)
	params.Set("limit", "1")
	params.Set("no_annotations", "1")
	if o.language != "" {
		params.Set("language", o.language)
	}

	body, err := o.client.Get(ctx, openCageEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return geo.Coordinate{}, err
	}

	var resp openCageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return geo.Coordinate{}, invalidResponse("decode opencage response: %v", err)
	}

	if len(resp.Results) == 0 {
		return geo.Coordinate{}, notFound(nil)
	}

	top := resp.Results[0].Geometry
	if top == nil || top.Lat == nil || top.Lng == nil {
		return geo.Coordinate{}, invalidResponse("top result has no geometry")
	}

	return geo.Coordinate{Latitude: *top.Lat, Longitude: *top.Lng}, nil
}
