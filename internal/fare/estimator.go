package fare

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/geo"
)

// Currency is the only currency quotes are priced in. Tariffs and the
// predictor's output are USD amounts.
const Currency = "USD"

// Trip carries everything a strategy may price on
type Trip struct {
	DistanceMeters  float64
	DurationSeconds float64
	PassengerCount  int
	PickupTime      time.Time
	Pickup          geo.Coordinate
	Dropoff         geo.Coordinate
}

// DistanceKm returns the trip length in kilometres
func (t Trip) DistanceKm() float64 {
	return t.DistanceMeters / 1000
}

// DurationMinutes returns the travel time in minutes
func (t Trip) DurationMinutes() float64 {
	return t.DurationSeconds / 60
}

// Money is an amount rounded to cents
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

func (m Money) String() string {
	return fmt.Sprintf("%.2f %s", m.Amount, m.Currency)
}

// Estimator prices a trip
type Estimator interface {
	Estimate(ctx context.Context, trip Trip) (Money, error)
	Name() string
}

// NewEstimator returns the strategy selected by FARE_STRATEGY
func NewEstimator(cfg *config.Config) (Estimator, error) {
	switch cfg.Fare.Strategy {
	case "", StrategyFormula:
		return NewFormula(RatesFromConfig(cfg.Fare)), nil
	case StrategyRemote:
		if cfg.Fare.PredictorURL == "" {
			return nil, fmt.Errorf("remote fare strategy requires a predictor URL")
		}
		breaker := newBreaker(cfg)
		return NewPredictor(cfg.Fare, cfg.Timeout.FareTimeout(), breaker), nil
	default:
		return nil, fmt.Errorf("unknown fare strategy %q", cfg.Fare.Strategy)
	}
}

// roundCents rounds to 2 decimal places
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func checkAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return invalidResponse("fare %v is not a finite number", amount)
	}
	if amount < 0 {
		return invalidResponse("fare %v is negative", amount)
	}
	return nil
}
