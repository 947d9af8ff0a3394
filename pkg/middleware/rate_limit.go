package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/trip-quote/pkg/common"
	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/logger"
	"github.com/richxcame/trip-quote/pkg/ratelimit"
	"go.uber.org/zap"
)

// RateLimit enforces limiter quotas per route. Must run after Session: callers
// presenting their own session are limited per session, everyone else per
// client IP. Redis errors let the request through.
func RateLimit(limiter *ratelimit.Limiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	if limiter == nil || !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		endpoint := rateLimitEndpoint(c)
		identity, identityType := rateLimitIdentity(c)

		rule := limiter.RuleFor(endpoint, identityType)
		if rule.Limit <= 0 {
			c.Next()
			return
		}

		result, err := limiter.Allow(c.Request.Context(), endpoint, identity, rule, identityType)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "rate limit check failed, allowing request",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(wholeSeconds(result.ResetAfter)))

		if result.Allowed {
			c.Next()
			return
		}

		retryAfter := max(wholeSeconds(result.RetryAfter), 1)
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		logger.WarnContext(c.Request.Context(), "rate limit exceeded",
			zap.String("endpoint", endpoint),
			zap.String("identity_type", identityType.String()),
			zap.Int("retry_after_seconds", retryAfter),
		)

		common.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
		c.Abort()
	}
}

// rateLimitEndpoint is "METHOD:/route/template", the key endpoint overrides use
func rateLimitEndpoint(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return c.Request.Method + ":" + route
}

func rateLimitIdentity(c *gin.Context) (string, ratelimit.IdentityType) {
	if SessionSupplied(c) {
		if id := GetSessionID(c); id != "" {
			return id, ratelimit.IdentitySession
		}
	}
	if ip := c.ClientIP(); ip != "" {
		return ip, ratelimit.IdentityAnonymous
	}
	return "unknown", ratelimit.IdentityAnonymous
}

func wholeSeconds(d time.Duration) int {
	return max(int(d.Round(time.Second)/time.Second), 0)
}
