package quote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/richxcame/trip-quote/internal/fare"
	"github.com/richxcame/trip-quote/internal/geocoding"
	"github.com/richxcame/trip-quote/internal/routing"
	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/eventbus"
	"github.com/richxcame/trip-quote/pkg/geo"
	"github.com/richxcame/trip-quote/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	empireState = geo.Coordinate{Latitude: 40.7484, Longitude: -73.9857}
	timesSquare = geo.Coordinate{Latitude: 40.7580, Longitude: -73.9855}
)

func referenceRoute() *routing.Result {
	return &routing.Result{
		Path:            []geo.Coordinate{empireState, {Latitude: 40.7527, Longitude: -73.9870}, timesSquare},
		DistanceMeters:  1440,
		DurationSeconds: 390,
	}
}

func referenceRequest() TripRequest {
	return TripRequest{
		Pickup:         PlaceLocation("Empire State Building"),
		Dropoff:        PlaceLocation("Times Square"),
		PickupTime:     "2014-07-06 17:18:00",
		PassengerCount: 1,
	}
}

type fixture struct {
	geocoder  *mockGeocoder
	router    *mockRouter
	publisher *mockPublisher
	service   *Service
}

func newFixture(t *testing.T, estimator fare.Estimator) *fixture {
	t.Helper()

	f := &fixture{
		geocoder:  new(mockGeocoder),
		router:    new(mockRouter),
		publisher: new(mockPublisher),
	}
	if estimator == nil {
		estimator = fare.NewFormula(fare.ReferenceRates())
	}
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.service = NewService(Dependencies{
		Geocoder:     f.geocoder,
		Router:       f.router,
		Estimator:    estimator,
		RouteOptions: routing.Options{Profile: routing.DefaultProfile},
		Publisher:    f.publisher,
	})
	return f
}

func (f *fixture) expectReferenceLookups() {
	f.geocoder.On("Resolve", mock.Anything, "Empire State Building").Return(empireState, nil)
	f.geocoder.On("Resolve", mock.Anything, "Times Square").Return(timesSquare, nil)
}

func TestQuoteReferenceScenario(t *testing.T) {
	f := newFixture(t, nil)
	f.expectReferenceLookups()
	f.router.On("Route", mock.Anything, empireState, timesSquare, mock.Anything).Return(referenceRoute(), nil)

	result, failure := f.service.Quote(context.Background(), referenceRequest())
	require.Nil(t, failure)

	assert.Equal(t, empireState, result.PickupCoord)
	assert.Equal(t, timesSquare, result.DropoffCoord)
	assert.Equal(t, 7.55, result.Fare)
	assert.Equal(t, "USD", result.Currency)
	assert.InDelta(t, 1.44, result.DistanceKm, 1e-9)
	assert.InDelta(t, 6.5, result.DurationMin, 1e-9)

	last, ok := f.service.LastQuote()
	require.True(t, ok)
	assert.Same(t, result, last)

	f.publisher.AssertCalled(t, "Publish", mock.Anything, eventbus.SubjectQuoteComputed, mock.Anything)
	f.geocoder.AssertExpectations(t)
	f.router.AssertExpectations(t)
}

func TestQuoteRouteEndpointsNearPickupAndDropoff(t *testing.T) {
	f := newFixture(t, nil)
	f.expectReferenceLookups()
	f.router.On("Route", mock.Anything, empireState, timesSquare, mock.Anything).Return(referenceRoute(), nil)

	result, failure := f.service.Quote(context.Background(), referenceRequest())
	require.Nil(t, failure)

	path := result.Route.Path
	assert.Less(t, geo.Haversine(path[0], result.PickupCoord), 0.5)
	assert.Less(t, geo.Haversine(path[len(path)-1], result.DropoffCoord), 0.5)
}

func TestQuoteExtraPassengers(t *testing.T) {
	f := newFixture(t, nil)
	f.expectReferenceLookups()
	f.router.On("Route", mock.Anything, empireState, timesSquare, mock.Anything).Return(referenceRoute(), nil)

	one, failure := f.service.Quote(context.Background(), referenceRequest())
	require.Nil(t, failure)

	req := referenceRequest()
	req.PassengerCount = 4
	four, failure := f.service.Quote(context.Background(), req)
	require.Nil(t, failure)

	assert.InDelta(t, 2.25, four.Fare-one.Fare, 1e-9)
}

func TestQuoteCoordinatesSkipGeocoding(t *testing.T) {
	f := newFixture(t, nil)
	f.router.On("Route", mock.Anything, empireState, timesSquare, mock.Anything).Return(referenceRoute(), nil)

	req := referenceRequest()
	req.Pickup = CoordinateLocation(empireState)
	req.Dropoff = CoordinateLocation(timesSquare)

	_, failure := f.service.Quote(context.Background(), req)
	require.Nil(t, failure)
	f.geocoder.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestQuoteValidationFailures(t *testing.T) {
	tests := map[string]func(*TripRequest){
		"no passengers": func(r *TripRequest) { r.PassengerCount = 0 },
		"too many":      func(r *TripRequest) { r.PassengerCount = 9 },
		"missing time":  func(r *TripRequest) { r.PickupTime = "" },
		"iso time":      func(r *TripRequest) { r.PickupTime = "2014-07-06T17:18:00Z" },
		"bad latitude":  func(r *TripRequest) { r.Pickup = CoordinateLocation(geo.Coordinate{Latitude: 91, Longitude: 0}) },
		"bad longitude": func(r *TripRequest) { r.Dropoff = CoordinateLocation(geo.Coordinate{Latitude: 0, Longitude: -181}) },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)
			req := referenceRequest()
			mutate(&req)

			result, failure := f.service.Quote(context.Background(), req)
			assert.Nil(t, result)
			require.NotNil(t, failure)
			assert.Equal(t, StageValidation, failure.Stage)
			assert.Equal(t, ReasonInvalidRequest, failure.Reason)
			assert.NotEmpty(t, failure.Fields)

			f.geocoder.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
			f.router.AssertNotCalled(t, "Route", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			_, ok := f.service.LastQuote()
			assert.False(t, ok)
		})
	}
}

func TestQuoteEmptyDropoffMakesNoCall(t *testing.T) {
	var mu sync.Mutex
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query().Get("q"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{"geometry": {"lat": 40.7484, "lng": -73.9857}}]}`))
	}))
	defer server.Close()

	geocoder := geocoding.NewOpenCage(config.GeocodingConfig{APIKey: "k", BaseURL: server.URL}, time.Second, nil)
	router := new(mockRouter)
	svc := NewService(Dependencies{
		Geocoder:  geocoder,
		Router:    router,
		Estimator: fare.NewFormula(fare.ReferenceRates()),
	})

	req := referenceRequest()
	req.Dropoff = PlaceLocation("")

	_, failure := svc.Quote(context.Background(), req)
	require.NotNil(t, failure)
	assert.Equal(t, StageGeocoding, failure.Stage)
	assert.Equal(t, ReasonNotFound, failure.Reason)
	assert.ErrorIs(t, failure, geocoding.ErrEmptyQuery)

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, queries, "")
	router.AssertNotCalled(t, "Route", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestQuoteStageFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *fixture)
		stage  Stage
		reason Reason
	}{
		{
			name: "pickup not found",
			setup: func(f *fixture) {
				f.geocoder.On("Resolve", mock.Anything, "Empire State Building").
					Return(geo.Coordinate{}, &geocoding.Error{Reason: geocoding.ReasonNotFound, Provider: "opencage"})
				f.geocoder.On("Resolve", mock.Anything, "Times Square").Return(timesSquare, nil).Maybe()
			},
			stage:  StageGeocoding,
			reason: ReasonNotFound,
		},
		{
			name: "geocoder down",
			setup: func(f *fixture) {
				f.geocoder.On("Resolve", mock.Anything, mock.Anything).
					Return(geo.Coordinate{}, &geocoding.Error{Reason: geocoding.ReasonServiceUnavailable, Provider: "opencage"})
			},
			stage:  StageGeocoding,
			reason: ReasonServiceUnavailable,
		},
		{
			name: "geocoder garbage",
			setup: func(f *fixture) {
				f.geocoder.On("Resolve", mock.Anything, mock.Anything).
					Return(geo.Coordinate{}, &geocoding.Error{Reason: geocoding.ReasonInvalidResponse, Provider: "opencage"})
			},
			stage:  StageGeocoding,
			reason: ReasonInvalidResponse,
		},
		{
			name: "untyped geocoder error",
			setup: func(f *fixture) {
				f.geocoder.On("Resolve", mock.Anything, mock.Anything).Return(geo.Coordinate{}, errors.New("boom"))
			},
			stage:  StageGeocoding,
			reason: ReasonServiceUnavailable,
		},
		{
			name: "no path",
			setup: func(f *fixture) {
				f.expectReferenceLookups()
				f.router.On("Route", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(nil, &routing.Error{Reason: routing.ReasonNoPathFound, Provider: "graphhopper"})
			},
			stage:  StageRouting,
			reason: ReasonNoPathFound,
		},
		{
			name: "router down",
			setup: func(f *fixture) {
				f.expectReferenceLookups()
				f.router.On("Route", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(nil, &routing.Error{Reason: routing.ReasonServiceUnavailable, Provider: "graphhopper"})
			},
			stage:  StageRouting,
			reason: ReasonServiceUnavailable,
		},
		{
			name: "router garbage",
			setup: func(f *fixture) {
				f.expectReferenceLookups()
				f.router.On("Route", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(nil, &routing.Error{Reason: routing.ReasonInvalidResponse, Provider: "graphhopper"})
			},
			stage:  StageRouting,
			reason: ReasonInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			tt.setup(f)

			result, failure := f.service.Quote(context.Background(), referenceRequest())
			assert.Nil(t, result)
			require.NotNil(t, failure)
			assert.Equal(t, tt.stage, failure.Stage)
			assert.Equal(t, tt.reason, failure.Reason)
			assert.NotEmpty(t, failure.Error())

			_, ok := f.service.LastQuote()
			assert.False(t, ok)
			f.publisher.AssertCalled(t, "Publish", mock.Anything, eventbus.SubjectQuoteFailed, mock.Anything)
		})
	}
}

func TestQuoteFailureKeepsLastQuote(t *testing.T) {
	f := newFixture(t, nil)
	f.expectReferenceLookups()
	f.router.On("Route", mock.Anything, empireState, timesSquare, mock.Anything).Return(referenceRoute(), nil).Once()
	f.router.On("Route", mock.Anything, empireState, timesSquare, mock.Anything).
		Return(nil, &routing.Error{Reason: routing.ReasonServiceUnavailable}).Once()

	first, failure := f.service.Quote(context.Background(), referenceRequest())
	require.Nil(t, failure)

	_, failure = f.service.Quote(context.Background(), referenceRequest())
	require.NotNil(t, failure)

	last, ok := f.service.LastQuote()
	require.True(t, ok)
	assert.Same(t, first, last)
}

func TestQuoteFareFailureKeepsPartialRoute(t *testing.T) {
	estimator := new(mockEstimator)
	estimator.On("Estimate", mock.Anything, mock.Anything).
		Return(fare.Money{}, &fare.Error{Reason: fare.ReasonServiceUnavailable, Strategy: fare.StrategyRemote})

	f := newFixture(t, estimator)
	f.expectReferenceLookups()
	route := referenceRoute()
	f.router.On("Route", mock.Anything, empireState, timesSquare, mock.Anything).Return(route, nil)

	_, failure := f.service.Quote(context.Background(), referenceRequest())
	require.NotNil(t, failure)
	assert.Equal(t, StageFareEstimation, failure.Stage)
	assert.Equal(t, ReasonServiceUnavailable, failure.Reason)

	partial, ok := f.service.LastPartialRoute()
	require.True(t, ok)
	assert.Same(t, route, partial)
	_, ok = f.service.LastQuote()
	assert.False(t, ok)

	f.service.Clear()
	_, ok = f.service.LastPartialRoute()
	assert.False(t, ok)
}

func TestQuoteRoutingFailureDropsEarlierPartialRoute(t *testing.T) {
	estimator := new(mockEstimator)
	estimator.On("Estimate", mock.Anything, mock.Anything).
		Return(fare.Money{}, &fare.Error{Reason: fare.ReasonServiceUnavailable, Strategy: fare.StrategyRemote}).Once()

	f := newFixture(t, estimator)
	f.expectReferenceLookups()
	f.router.On("Route", mock.Anything, empireState, timesSquare, mock.Anything).Return(referenceRoute(), nil).Once()
	f.router.On("Route", mock.Anything, empireState, timesSquare, mock.Anything).
		Return(nil, &routing.Error{Reason: routing.ReasonNoPathFound, Provider: "graphhopper"}).Once()

	_, failure := f.service.Quote(context.Background(), referenceRequest())
	require.NotNil(t, failure)
	assert.Equal(t, StageFareEstimation, failure.Stage)
	_, ok := f.service.LastPartialRoute()
	require.True(t, ok)

	_, failure = f.service.Quote(context.Background(), referenceRequest())
	require.NotNil(t, failure)
	assert.Equal(t, StageRouting, failure.Stage)

	_, ok = f.service.LastPartialRoute()
	assert.False(t, ok)
	estimator.AssertNumberOfCalls(t, "Estimate", 1)
}

func TestQuotePassesTripToEstimator(t *testing.T) {
	estimator := new(mockEstimator)
	estimator.On("Estimate", mock.Anything, mock.MatchedBy(func(trip fare.Trip) bool {
		return trip.DistanceMeters == 1440 &&
			trip.DurationSeconds == 390 &&
			trip.PassengerCount == 3 &&
			trip.PickupTime.Equal(time.Date(2014, 7, 6, 17, 18, 0, 0, time.UTC)) &&
			trip.Pickup == empireState &&
			trip.Dropoff == timesSquare
	})).Return(fare.Money{Amount: 11.2, Currency: "USD"}, nil)

	f := newFixture(t, estimator)
	f.expectReferenceLookups()
	f.router.On("Route", mock.Anything, empireState, timesSquare, mock.Anything).Return(referenceRoute(), nil)

	req := referenceRequest()
	req.PassengerCount = 3
	result, failure := f.service.Quote(context.Background(), req)
	require.Nil(t, failure)
	assert.Equal(t, 11.2, result.Fare)
	estimator.AssertExpectations(t)
}

func TestQuoteResolvesEndpointsConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})
	go func() {
		started.Wait()
		close(release)
	}()

	f := newFixture(t, nil)
	wait := func(mock.Arguments) {
		started.Done()
		select {
		case <-release:
		case <-time.After(2 * time.Second):
			t.Error("geocode calls did not overlap")
		}
	}
	f.geocoder.On("Resolve", mock.Anything, "Empire State Building").Run(wait).Return(empireState, nil)
	f.geocoder.On("Resolve", mock.Anything, "Times Square").Run(wait).Return(timesSquare, nil)
	f.router.On("Route", mock.Anything, empireState, timesSquare, mock.Anything).Return(referenceRoute(), nil)

	_, failure := f.service.Quote(context.Background(), referenceRequest())
	require.Nil(t, failure)
}

func TestQuoteConcurrentCallsLastWriterWins(t *testing.T) {
	f := newFixture(t, nil)
	f.expectReferenceLookups()
	f.router.On("Route", mock.Anything, empireState, timesSquare, mock.Anything).Return(referenceRoute(), nil)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			req := referenceRequest()
			req.PassengerCount = n
			_, failure := f.service.Quote(context.Background(), req)
			assert.Nil(t, failure)
		}(i)
	}
	wg.Wait()

	last, ok := f.service.LastQuote()
	require.True(t, ok)
	assert.GreaterOrEqual(t, last.PassengerCount, 1)
	assert.LessOrEqual(t, last.PassengerCount, 8)
}

func TestQuoteFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := logger.SetLogger(zap.New(core))
	defer restore()

	f := newFixture(t, nil)
	f.geocoder.On("Resolve", mock.Anything, mock.Anything).
		Return(geo.Coordinate{}, &geocoding.Error{Reason: geocoding.ReasonNotFound})

	ctx := logger.ContextWithSessionID(context.Background(), "sess-42")
	_, failure := f.service.Quote(ctx, referenceRequest())
	require.NotNil(t, failure)

	entries := logs.FilterMessage("quote failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "geocoding", fields["stage"])
	assert.Equal(t, "not_found", fields["reason"])
	assert.Equal(t, "sess-42", fields["session_id"])
}

func TestQuotePublishErrorDoesNotFailQuote(t *testing.T) {
	publisher := new(mockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("nats down"))

	geocoder := new(mockGeocoder)
	geocoder.On("Resolve", mock.Anything, "Empire State Building").Return(empireState, nil)
	geocoder.On("Resolve", mock.Anything, "Times Square").Return(timesSquare, nil)
	router := new(mockRouter)
	router.On("Route", mock.Anything, empireState, timesSquare, mock.Anything).Return(referenceRoute(), nil)

	svc := NewService(Dependencies{
		Geocoder:  geocoder,
		Router:    router,
		Estimator: fare.NewFormula(fare.ReferenceRates()),
		Publisher: publisher,
	})

	_, failure := svc.Quote(context.Background(), referenceRequest())
	assert.Nil(t, failure)
	publisher.AssertNumberOfCalls(t, "Publish", 1)
}
