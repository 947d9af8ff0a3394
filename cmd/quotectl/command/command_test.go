package command

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/richxcame/trip-quote/internal/quote"
	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/eventbus"
	"github.com/richxcame/trip-quote/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedQuoter struct {
	failures []*quote.Failure
	calls    int
}

func (s *scriptedQuoter) Quote(_ context.Context, req quote.TripRequest) (*quote.Result, *quote.Failure) {
	s.calls++
	if s.calls <= len(s.failures) {
		return nil, s.failures[s.calls-1]
	}
	return &quote.Result{Fare: 7.55, Currency: "USD", PassengerCount: req.PassengerCount}, nil
}

func unavailable() *quote.Failure {
	return &quote.Failure{Stage: quote.StageRouting, Reason: quote.ReasonServiceUnavailable, Message: "router down"}
}

func TestParseLocation(t *testing.T) {
	loc := parseLocation("40.7506, -73.9935")
	require.True(t, loc.IsCoordinate())
	assert.InDelta(t, 40.7506, loc.Coordinate.Latitude, 1e-9)
	assert.InDelta(t, -73.9935, loc.Coordinate.Longitude, 1e-9)

	for _, raw := range []string{"Penn Station, NYC", "Central Park", "95.0,10.0", ""} {
		loc := parseLocation(raw)
		assert.False(t, loc.IsCoordinate(), raw)
		assert.Equal(t, raw, loc.Query)
	}
}

func TestQuoteWithRetry_RetriesServiceUnavailable(t *testing.T) {
	q := &scriptedQuoter{failures: []*quote.Failure{unavailable()}}

	result, err := quoteWithRetry(context.Background(), q, quote.TripRequest{PassengerCount: 2}, 1)

	require.NoError(t, err)
	assert.Equal(t, 2, q.calls)
	assert.Equal(t, 7.55, result.Fare)
	assert.Equal(t, 2, result.PassengerCount)
}

func TestQuoteWithRetry_DoesNotRetryOtherReasons(t *testing.T) {
	notFound := &quote.Failure{Stage: quote.StageGeocoding, Reason: quote.ReasonNotFound, Message: "no match"}
	q := &scriptedQuoter{failures: []*quote.Failure{notFound}}

	result, err := quoteWithRetry(context.Background(), q, quote.TripRequest{}, 3)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, 1, q.calls)
}

func TestQuoteWithRetry_NoRetriesByDefault(t *testing.T) {
	q := &scriptedQuoter{failures: []*quote.Failure{unavailable()}}

	_, err := quoteWithRetry(context.Background(), q, quote.TripRequest{}, 0)

	require.Error(t, err)
	assert.True(t, retryable(err))
	assert.Equal(t, 1, q.calls)
}

func TestApplyOverrides(t *testing.T) {
	t.Cleanup(func() {
		quoteOpts.geocoder, quoteOpts.router, quoteOpts.customModel = "", "", ""
	})

	cfg := &config.Config{}
	cfg.Routing.CustomModelJSON = `{"priority":[]}`
	quoteOpts.geocoder = "Google"
	quoteOpts.router = "osrm"
	quoteOpts.customModel = "model.yaml"

	require.NoError(t, applyOverrides(cfg))
	assert.Equal(t, "google", cfg.Geocoding.Provider)
	assert.Equal(t, "osrm", cfg.Routing.Provider)
	assert.Equal(t, "model.yaml", cfg.Routing.CustomModelFile)
	assert.Empty(t, cfg.Routing.CustomModelJSON)

	quoteOpts.router = "mapquest"
	assert.Error(t, applyOverrides(cfg))
}

func TestApplyOverridesRejectsProviderOfOtherComponent(t *testing.T) {
	t.Cleanup(func() {
		quoteOpts.geocoder, quoteOpts.router = "", ""
	})

	cfg := &config.Config{}
	quoteOpts.geocoder = "osrm"
	err := applyOverrides(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--geocoder")
	assert.Empty(t, cfg.Geocoding.Provider)

	quoteOpts.geocoder = ""
	quoteOpts.router = "opencage"
	err = applyOverrides(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--router")
	assert.Empty(t, cfg.Routing.Provider)

	quoteOpts.router = "google"
	require.NoError(t, applyOverrides(cfg))
	assert.Equal(t, "google", cfg.Routing.Provider)
}

func TestPrintResult(t *testing.T) {
	pickup := geo.Coordinate{Latitude: 40.7506, Longitude: -73.9935}
	dropoff := geo.Coordinate{Latitude: 40.7812, Longitude: -73.9665}
	r := &quote.Result{
		Pickup:         quote.PlaceLocation("Penn Station, NYC"),
		Dropoff:        quote.CoordinateLocation(dropoff),
		PickupCoord:    pickup,
		DropoffCoord:   dropoff,
		DistanceKm:     1.44,
		DurationMin:    6.5,
		Fare:           7.55,
		Currency:       "USD",
		PassengerCount: 1,
	}

	var buf bytes.Buffer
	printResult(&buf, r, false)

	assert.Contains(t, buf.String(), "Penn Station, NYC")
	assert.Contains(t, buf.String(), "1.44 km")
	assert.Contains(t, buf.String(), "7.55 USD")

	buf.Reset()
	printResult(&buf, r, true)
	assert.Contains(t, buf.String(), "Fare:")
}

func TestPrintEvent(t *testing.T) {
	computed, err := eventbus.NewEvent(eventbus.SubjectQuoteComputed, "quote-service", eventbus.QuoteComputedData{
		SessionID:   "abc",
		DistanceKm:  1.44,
		DurationMin: 6.5,
		Fare:        7.55,
		Currency:    "USD",
		ComputedAt:  time.Now(),
	})
	require.NoError(t, err)
	failed, err := eventbus.NewEvent(eventbus.SubjectQuoteFailed, "quote-service", eventbus.QuoteFailedData{
		SessionID: "abc",
		Stage:     "routing",
		Reason:    "no_path_found",
		Message:   "no route",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printEvent(&buf, computed))
	require.NoError(t, printEvent(&buf, failed))

	assert.Contains(t, buf.String(), "fare=7.55 USD")
	assert.Contains(t, buf.String(), "stage=routing reason=no_path_found")

	computed.Data = []byte("{")
	assert.Error(t, printEvent(&buf, computed))
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "quotectl 1.0.0\n", buf.String())
}
