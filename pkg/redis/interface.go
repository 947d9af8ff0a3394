package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// ClientInterface is what the API needs from Redis: the token bucket script
// runs through Cmdable and readiness probes call HealthCheck.
type ClientInterface interface {
	redis.Cmdable
	HealthCheck(ctx context.Context) error
	Close() error
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)
