package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/resilience"
)

// Client wraps the Redis client
type Client struct {
	*redis.Client
	opTimeout time.Duration
}

// NewRedisClient creates a new Redis client, retrying the initial ping for
// transient connection errors so the API can start alongside Redis.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig, timeouts config.TimeoutConfig) (*Client, error) {
	opTimeout := timeouts.RedisOperationTimeoutDuration()
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.InitialBackoff = 200 * time.Millisecond
	retryCfg.MaxBackoff = 2 * time.Second
	retryCfg.RetryableChecker = isRedisRetryable

	_, err := resilience.RetryWithName(ctx, retryCfg, func(ctx context.Context) (interface{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		return nil, client.Ping(pingCtx).Err()
	}, "redis.connect")
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return &Client{Client: client, opTimeout: opTimeout}, nil
}

// HealthCheck pings Redis within the configured operation timeout
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.Client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *Client) Close() error {
	return c.Client.Close()
}

// isRedisRetryable determines if a Redis error is transient
func isRedisRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	// Nil means key not found, which is not a failure
	if errors.Is(err, redis.Nil) {
		return false
	}

	errMsg := strings.ToLower(err.Error())

	nonRetryableMessages := []string{
		"noauth",    // Authentication required
		"wrongpass", // Invalid password
		"noperm",    // No permission
	}
	for _, msg := range nonRetryableMessages {
		if strings.Contains(errMsg, msg) {
			return false
		}
	}

	retryableMessages := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"timeout",
		"deadline exceeded",
		"server closed",
		"unexpected eof",
		"loading", // Redis is loading dataset
		"busy",
		"tryagain",
	}
	for _, msg := range retryableMessages {
		if strings.Contains(errMsg, msg) {
			return true
		}
	}

	return false
}
