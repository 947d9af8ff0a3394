package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/richxcame/trip-quote/pkg/config"
)

// IdentityType says who a quota is charged to
type IdentityType int

const (
	// IdentityAnonymous is a caller without its own session, keyed by client IP
	IdentityAnonymous IdentityType = iota
	// IdentitySession is a caller presenting its own quote session ID
	IdentitySession
)

func (t IdentityType) String() string {
	if t == IdentitySession {
		return "session"
	}
	return "anonymous"
}

// Rule is the quota for one endpoint and identity type. Burst tokens are
// granted on top of Limit, which refills evenly over Window.
type Rule struct {
	Limit  int
	Burst  int
	Window time.Duration
}

// Result is the outcome of one Allow call
type Result struct {
	Allowed      bool
	Remaining    int
	Limit        int
	Window       time.Duration
	RetryAfter   time.Duration
	ResetAfter   time.Duration
	IdentityType IdentityType
}

// Limiter is a token bucket per (endpoint, identity) stored in Redis, so
// quotas hold across every quote-api replica.
type Limiter struct {
	client redis.Cmdable
	cfg    config.RateLimitConfig
	script *redis.Script
	now    func() time.Time
}

// KEYS[1] bucket; ARGV now(ms), refill per ms, capacity, ttl(ms).
// Returns {allowed, tokens left, retry after ms}.
var takeToken = redis.NewScript(`
local capacity = tonumber(ARGV[3])
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local state = redis.call("HMGET", KEYS[1], "tokens", "timestamp")
local tokens = tonumber(state[1]) or capacity
local last = tonumber(state[2]) or now

if now > last then
    tokens = math.min(capacity, tokens + (now - last) * rate)
    last = now
end

local allowed = 0
local wait = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
else
    wait = math.ceil((1 - tokens) / rate)
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "timestamp", last)
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return {allowed, tokens, wait}
`)

// NewLimiter creates a limiter over client
func NewLimiter(client redis.Cmdable, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: takeToken,
		now:    time.Now,
	}
}

// ScriptHash is the SHA1 the token bucket script is invoked by
func ScriptHash() string {
	return takeToken.Hash()
}

// WithNow overrides the clock
func (l *Limiter) WithNow(now func() time.Time) {
	l.now = now
}

// RuleFor resolves the quota for endpoint ("METHOD:/path"). Endpoint
// overrides win over the defaults for the identity type.
func (l *Limiter) RuleFor(endpoint string, identityType IdentityType) Rule {
	rule := Rule{Limit: l.cfg.DefaultLimit, Burst: l.cfg.DefaultBurst, Window: l.cfg.Window()}
	if identityType == IdentityAnonymous {
		rule.Limit, rule.Burst = l.cfg.AnonymousLimit, l.cfg.AnonymousBurst
	}

	if override, ok := l.cfg.EndpointOverrides[endpoint]; ok {
		limit, burst := override.SessionLimit, override.SessionBurst
		if identityType == IdentityAnonymous {
			limit, burst = override.AnonymousLimit, override.AnonymousBurst
		}
		if limit > 0 {
			rule.Limit = limit
		}
		if burst >= 0 {
			rule.Burst = burst
		}
		if override.WindowSeconds > 0 {
			rule.Window = time.Duration(override.WindowSeconds) * time.Second
		}
	}

	rule.Burst = max(rule.Burst, 0)
	return rule
}

// Allow takes one token from the caller's bucket. A disabled limiter or a
// rule without a limit always allows.
func (l *Limiter) Allow(ctx context.Context, endpointKey, identityKey string, rule Rule, identityType IdentityType) (Result, error) {
	result := Result{Limit: rule.Limit, Window: rule.Window, IdentityType: identityType}
	if !l.cfg.Enabled || rule.Limit <= 0 {
		result.Allowed = true
		result.Remaining = rule.Limit
		return result, nil
	}

	window := rule.Window
	if window <= 0 {
		window = l.cfg.Window()
	}
	if window <= 0 {
		window = time.Minute
	}
	result.Window = window

	windowMillis := window.Milliseconds()
	refill := float64(rule.Limit) / float64(windowMillis)
	capacity := float64(rule.Limit + rule.Burst)

	raw, err := l.script.Run(ctx, l.client,
		[]string{l.key(endpointKey, identityKey, identityType)},
		l.now().UnixMilli(), formatFloat(refill), formatFloat(capacity), 2*windowMillis,
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Result{}, errors.New("rate limit script: unexpected response")
	}

	tokens := toFloat(values[1])
	result.Allowed = toInt(values[0]) == 1
	result.Remaining = int(math.Max(0, math.Floor(tokens)))

	if result.Allowed {
		missing := math.Max(0, capacity-tokens)
		result.ResetAfter = time.Duration(math.Ceil(missing/refill)) * time.Millisecond
	} else {
		result.RetryAfter = time.Duration(toInt(values[2])) * time.Millisecond
		result.ResetAfter = result.RetryAfter
	}

	return result, nil
}

func (l *Limiter) key(endpointKey, identityKey string, identityType IdentityType) string {
	return fmt.Sprintf("%s:%s:%s:%s", l.cfg.RedisPrefix, endpointKey, identityType, identityKey)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 10, 64)
}

func toInt(value interface{}) int {
	return int(toFloat(value))
}

// toFloat reads a Lua reply value. Redis truncates Lua numbers to integers
// and go-redis may hand back int64 or string depending on the protocol.
func toFloat(value interface{}) float64 {
	switch v := value.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}
