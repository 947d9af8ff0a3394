package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/richxcame/trip-quote/pkg/logger"
	"go.uber.org/zap"
)

// RequestTimeout bounds the request context with the route's configured timeout.
// Handlers run on the request goroutine and are expected to honour ctx; if the
// deadline passed and nothing was written, a 504 is returned.
func RequestTimeout(cfg *config.TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		timeout := cfg.TimeoutForRoute(c.Request.Method, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Writer.Written() {
			return
		}

		logger.WithContext(ctx).Warn("Request timeout",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Duration("timeout", timeout),
		)

		c.Header("X-Timeout", "true")
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
			"success": false,
			"error": gin.H{
				"code":       http.StatusGatewayTimeout,
				"error_code": "request_timeout",
				"message":    "Request timeout",
			},
		})
	}
}
