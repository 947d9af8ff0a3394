package routing

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Encodes (38.5,-120.2), (40.7,-120.95), (43.252,-126.453)
const samplePolyline = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

func (f *fakeUpstream) google(t *testing.T) *Google {
	t.Helper()

	router, err := NewGoogle(config.RoutingConfig{APIKey: "AIza-test", BaseURL: f.server.URL}, time.Second, nil)
	require.NoError(t, err)
	return router
}

func TestGoogleRouteSumsLegs(t *testing.T) {
	fake := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/directions/json", r.URL.Path)
		assert.Equal(t, "driving", r.URL.Query().Get("mode"))
		writeJSON(w, http.StatusOK, `{
			"status": "OK",
			"routes": [{
				"overview_polyline": {"points": "`+samplePolyline+`"},
				"legs": [
					{"distance": {"text": "1.0 km", "value": 1000}, "duration": {"text": "2 mins", "value": 120}},
					{"distance": {"text": "0.5 km", "value": 500}, "duration": {"text": "1 min", "value": 60}}
				]
			}]
		}`)
	})

	result, err := fake.google(t).Route(context.Background(), pennStation, centralPark, defaultOptions())
	require.NoError(t, err)
	require.Len(t, result.Path, 3)
	assert.InDelta(t, 38.5, result.Path[0].Latitude, 1e-6)
	assert.InDelta(t, -120.2, result.Path[0].Longitude, 1e-6)
	assert.InDelta(t, 1500, result.DistanceMeters, 1e-9)
	assert.InDelta(t, 180, result.DurationSeconds, 1e-9)
}

func TestGoogleZeroResultsIsNoPath(t *testing.T) {
	fake := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status": "ZERO_RESULTS", "routes": []}`)
	})

	_, err := fake.google(t).Route(context.Background(), pennStation, londonBridge, defaultOptions())
	requireReason(t, err, ReasonNoPathFound)
}

func TestGoogleDeniedIsServiceUnavailable(t *testing.T) {
	fake := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status": "REQUEST_DENIED", "error_message": "The provided API key is invalid."}`)
	})

	_, err := fake.google(t).Route(context.Background(), pennStation, centralPark, defaultOptions())
	requireReason(t, err, ReasonServiceUnavailable)
}
