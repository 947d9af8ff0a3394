package config

import (
	"fmt"
	"time"
)

// Upstream timeouts are in milliseconds; request and Redis timeouts in seconds.
const (
	DefaultGeocodeTimeoutMs = 5000
	DefaultRouteTimeoutMs   = 10000
	DefaultFareTimeoutMs    = 5000

	DefaultRedisOperationTimeout = 5
	DefaultRequestTimeout        = 30

	MaxGeocodeTimeoutMs      = 30000
	MaxRouteTimeoutMs        = 60000
	MaxFareTimeoutMs         = 30000
	MaxRedisOperationTimeout = 60
	MaxRequestTimeout        = 300
)

// TimeoutConfig holds per-upstream call timeouts and the HTTP request timeout
type TimeoutConfig struct {
	GeocodeTimeoutMs      int
	RouteTimeoutMs        int
	FareTimeoutMs         int
	RedisOperationTimeout int
	DefaultRequestTimeout int
	// RouteOverrides maps "METHOD:/path" to a request timeout in seconds
	RouteOverrides map[string]int
}

func (t TimeoutConfig) validate() error {
	checks := []struct {
		name  string
		value int
		max   int
	}{
		{"GEOCODE_TIMEOUT_MS", t.GeocodeTimeoutMs, MaxGeocodeTimeoutMs},
		{"ROUTE_TIMEOUT_MS", t.RouteTimeoutMs, MaxRouteTimeoutMs},
		{"FARE_TIMEOUT_MS", t.FareTimeoutMs, MaxFareTimeoutMs},
		{"REDIS_OPERATION_TIMEOUT", t.RedisOperationTimeout, MaxRedisOperationTimeout},
		{"DEFAULT_REQUEST_TIMEOUT", t.DefaultRequestTimeout, MaxRequestTimeout},
	}

	for _, c := range checks {
		if c.value > c.max {
			return fmt.Errorf("%s (%d) exceeds maximum (%d)", c.name, c.value, c.max)
		}
		if c.value < 0 {
			return fmt.Errorf("%s (%d) must not be negative", c.name, c.value)
		}
	}

	for route, seconds := range t.RouteOverrides {
		if seconds > MaxRequestTimeout {
			return fmt.Errorf("route timeout for %s (%d) exceeds maximum (%d)", route, seconds, MaxRequestTimeout)
		}
	}

	return nil
}

// GeocodeTimeout returns the per-call geocoding timeout
func (t TimeoutConfig) GeocodeTimeout() time.Duration {
	return msOrDefault(t.GeocodeTimeoutMs, DefaultGeocodeTimeoutMs)
}

// RouteTimeout returns the per-call routing timeout
func (t TimeoutConfig) RouteTimeout() time.Duration {
	return msOrDefault(t.RouteTimeoutMs, DefaultRouteTimeoutMs)
}

// FareTimeout returns the per-call fare predictor timeout
func (t TimeoutConfig) FareTimeout() time.Duration {
	return msOrDefault(t.FareTimeoutMs, DefaultFareTimeoutMs)
}

// RedisOperationTimeoutDuration returns the Redis command timeout
func (t TimeoutConfig) RedisOperationTimeoutDuration() time.Duration {
	return secondsOrDefault(t.RedisOperationTimeout, DefaultRedisOperationTimeout)
}

// DefaultRequestTimeoutDuration returns the default HTTP request timeout
func (t TimeoutConfig) DefaultRequestTimeoutDuration() time.Duration {
	return secondsOrDefault(t.DefaultRequestTimeout, DefaultRequestTimeout)
}

// TimeoutForRoute returns the request timeout for method and path, falling back to the default
func (t TimeoutConfig) TimeoutForRoute(method, path string) time.Duration {
	if seconds, ok := t.RouteOverrides[method+":"+path]; ok && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return t.DefaultRequestTimeoutDuration()
}

func msOrDefault(value, def int) time.Duration {
	if value <= 0 {
		value = def
	}
	return time.Duration(value) * time.Millisecond
}

func secondsOrDefault(value, def int) time.Duration {
	if value <= 0 {
		value = def
	}
	return time.Duration(value) * time.Second
}
