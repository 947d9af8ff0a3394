package fare

import (
	"context"
	"encoding/json"
	"time"

	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/httpclient"
	"github.com/richxcame/trip-quote/pkg/logger"
	"github.com/richxcame/trip-quote/pkg/resilience"
	"github.com/richxcame/trip-quote/pkg/tracing"
	"github.com/richxcame/trip-quote/pkg/validation"
	"go.uber.org/zap"
)

const (
	// StrategyRemote asks an external predictor for the fare
	StrategyRemote = "remote"

	predictEndpoint = "/predict"
)

type predictRequest struct {
	PickupDatetime   string  `json:"pickup_datetime"`
	PassengerCount   int     `json:"passenger_count"`
	DistanceKm       float64 `json:"distance_km"`
	DurationMin      float64 `json:"duration_min"`
	PickupLatitude   float64 `json:"pickup_latitude"`
	PickupLongitude  float64 `json:"pickup_longitude"`
	DropoffLatitude  float64 `json:"dropoff_latitude"`
	DropoffLongitude float64 `json:"dropoff_longitude"`
}

type predictResponse struct {
	Fare *float64 `json:"fare"`
}

// Predictor prices trips with a remote model. How it weighs passenger
// count or pickup time is up to the model.
type Predictor struct {
	client  *httpclient.Client
	timeout time.Duration
	breaker *resilience.CircuitBreaker
}

// NewPredictor creates a remote fare estimator
func NewPredictor(cfg config.FareConfig, timeout time.Duration, breaker *resilience.CircuitBreaker) *Predictor {
	var opts []httpclient.Option
	if cfg.PredictorAPIKey != "" {
		opts = append(opts, httpclient.WithHeader("Authorization", "Bearer "+cfg.PredictorAPIKey))
	}

	return &Predictor{
		client:  httpclient.NewClient(cfg.PredictorURL, timeout, opts...),
		timeout: timeout,
		breaker: breaker,
	}
}

func newBreaker(cfg *config.Config) *resilience.CircuitBreaker {
	// every predictor failure is an upstream fault
	return resilience.NewUpstreamBreaker(cfg.Resilience.CircuitBreaker, "fare-predictor", nil)
}

// Name returns the strategy name
func (p *Predictor) Name() string {
	return StrategyRemote
}

// HealthCheck reports the predictor as unhealthy while its breaker is open
func (p *Predictor) HealthCheck(context.Context) error {
	if !p.breaker.Allow() {
		return &Error{Reason: ReasonServiceUnavailable, Strategy: StrategyRemote, Err: resilience.ErrCircuitOpen}
	}
	return nil
}

// Estimate asks the predictor for a fare
func (p *Predictor) Estimate(ctx context.Context, trip Trip) (Money, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := predictRequest{
		PickupDatetime:   trip.PickupTime.Format(validation.PickupTimeLayout),
		PassengerCount:   trip.PassengerCount,
		DistanceKm:       trip.DistanceKm(),
		DurationMin:      trip.DurationMinutes(),
		PickupLatitude:   trip.Pickup.Latitude,
		PickupLongitude:  trip.Pickup.Longitude,
		DropoffLatitude:  trip.Dropoff.Latitude,
		DropoffLongitude: trip.Dropoff.Longitude,
	}

	var amount float64
	err := tracing.UpstreamCall(ctx, "fare-predictor", "predict", func(ctx context.Context) error {
		out, err := p.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return p.predict(ctx, req)
		})
		if err != nil {
			return err
		}
		amount = out.(float64)
		return nil
	})
	if err == nil {
		err = checkAmount(amount)
	}
	if err != nil {
		ferr := classify(StrategyRemote, err)
		logger.WithContext(ctx).Debug("fare prediction failed",
			zap.String("reason", string(ferr.Reason)),
			zap.Error(err),
		)
		return Money{}, ferr
	}

	return Money{Amount: roundCents(amount), Currency: Currency}, nil
}

func (p *Predictor) predict(ctx context.Context, req predictRequest) (float64, error) {
	body, err := p.client.PostWithIdempotency(ctx, predictEndpoint, req, nil, "")
	if err != nil {
		return 0, err
	}

	var resp predictResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, invalidResponse("decode prediction: %v", err)
	}
	if resp.Fare == nil {
		return 0, invalidResponse("prediction has no fare")
	}
	return *resp.Fare, nil
}
