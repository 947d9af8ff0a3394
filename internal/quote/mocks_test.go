package quote

import (
	"context"

	"github.com/richxcame/trip-quote/internal/fare"
	"github.com/richxcame/trip-quote/internal/routing"
	"github.com/richxcame/trip-quote/pkg/eventbus"
	"github.com/richxcame/trip-quote/pkg/geo"
	"github.com/stretchr/testify/mock"
)

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Resolve(ctx context.Context, query string) (geo.Coordinate, error) {
	args := m.Called(ctx, query)
	return args.Get(0).(geo.Coordinate), args.Error(1)
}

func (m *mockGeocoder) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockGeocoder) Name() string {
	return "mock"
}

type mockRouter struct {
	mock.Mock
}

func (m *mockRouter) Route(ctx context.Context, from, to geo.Coordinate, opts routing.Options) (*routing.Result, error) {
	args := m.Called(ctx, from, to, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routing.Result), args.Error(1)
}

func (m *mockRouter) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockRouter) Name() string {
	return "mock"
}

type mockEstimator struct {
	mock.Mock
}

func (m *mockEstimator) Estimate(ctx context.Context, trip fare.Trip) (fare.Money, error) {
	args := m.Called(ctx, trip)
	return args.Get(0).(fare.Money), args.Error(1)
}

func (m *mockEstimator) Name() string {
	return "mock"
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, event *eventbus.Event) error {
	return m.Called(ctx, subject, event).Error(0)
}
