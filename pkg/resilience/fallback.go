package resilience

import (
	"context"
	"fmt"

	"github.com/richxcame/trip-quote/pkg/logger"
	"go.uber.org/zap"
)

// FallbackFunc is executed when the breaker is open or overloaded.
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// NoopFallback returns the breaker open error without additional handling.
func NoopFallback(ctx context.Context, err error) (interface{}, error) {
	return nil, ErrCircuitOpen
}

// GracefulDegradation logs the short-circuit and reports the upstream as unavailable.
// The returned error always matches ErrCircuitOpen.
func GracefulDegradation(upstream string) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		logger.WarnContext(ctx, "upstream short-circuited",
			zap.String("upstream", upstream),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s unavailable: %w", upstream, ErrCircuitOpen)
	}
}
