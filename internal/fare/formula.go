package fare

import (
	"context"

	"github.com/richxcame/trip-quote/pkg/config"
)

// StrategyFormula prices trips with a closed-form tariff
const StrategyFormula = "formula"

// Rates is a linear tariff
type Rates struct {
	BaseFare          float64
	PerKm             float64
	PerMinute         float64
	ExtraPassengerFee float64
}

// ReferenceRates is the stock tariff
func ReferenceRates() Rates {
	return Rates{
		BaseFare:          2.50,
		PerKm:             1.25,
		PerMinute:         0.50,
		ExtraPassengerFee: 0.75,
	}
}

// RatesFromConfig reads the tariff from the fare config section
func RatesFromConfig(cfg config.FareConfig) Rates {
	return Rates{
		BaseFare:          cfg.BaseFare,
		PerKm:             cfg.PerKm,
		PerMinute:         cfg.PerMinute,
		ExtraPassengerFee: cfg.ExtraPassengerFee,
	}
}

// Formula prices a trip as
// base + perKm*km + perMinute*min + extraPassenger*max(0, passengers-1).
type Formula struct {
	rates Rates
}

// NewFormula creates a formula estimator
func NewFormula(rates Rates) *Formula {
	return &Formula{rates: rates}
}

// Name returns the strategy name
func (f *Formula) Name() string {
	return StrategyFormula
}

// Rates returns the tariff in use
func (f *Formula) Rates() Rates {
	return f.rates
}

// Estimate computes the fare. It never blocks and ignores the pickup time.
func (f *Formula) Estimate(_ context.Context, trip Trip) (Money, error) {
	extra := trip.PassengerCount - 1
	if extra < 0 {
		extra = 0
	}

	amount := f.rates.BaseFare +
		f.rates.PerKm*trip.DistanceKm() +
		f.rates.PerMinute*trip.DurationMinutes() +
		f.rates.ExtraPassengerFee*float64(extra)

	if err := checkAmount(amount); err != nil {
		return Money{}, classify(StrategyFormula, err)
	}

	return Money{Amount: roundCents(amount), Currency: Currency}, nil
}
