package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/trip-quote/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForCancel blocks until the request context ends and writes nothing
func waitForCancel(c *gin.Context) {
	<-c.Request.Context().Done()
}

func TestRequestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("should return 504 when the deadline passes before a response", func(t *testing.T) {
		timeoutConfig := &config.TimeoutConfig{DefaultRequestTimeout: 1}

		router := gin.New()
		router.Use(RequestTimeout(timeoutConfig))
		router.GET("/slow", waitForCancel)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Contains(t, w.Body.String(), "Request timeout")
		assert.Equal(t, "true", w.Header().Get("X-Timeout"))
	})

	t.Run("should not timeout if request completes in time", func(t *testing.T) {
		timeoutConfig := &config.TimeoutConfig{DefaultRequestTimeout: 2}

		router := gin.New()
		router.Use(RequestTimeout(timeoutConfig))
		router.GET("/fast", func(c *gin.Context) {
			time.Sleep(50 * time.Millisecond)
			c.JSON(http.StatusOK, gin.H{"message": "success"})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fast", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "success")
		assert.Empty(t, w.Header().Get("X-Timeout"))
	})

	t.Run("should apply the route override as the deadline", func(t *testing.T) {
		timeoutConfig := &config.TimeoutConfig{
			DefaultRequestTimeout: 1,
			RouteOverrides:        map[string]int{"POST:/api/v1/quotes": 45},
		}

		router := gin.New()
		router.Use(RequestTimeout(timeoutConfig))

		var remaining time.Duration
		router.POST("/api/v1/quotes", func(c *gin.Context) {
			deadline, ok := c.Request.Context().Deadline()
			require.True(t, ok)
			remaining = time.Until(deadline)
			c.Status(http.StatusNoContent)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/quotes", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Greater(t, remaining, 30*time.Second)
	})

	t.Run("should keep a response written before the deadline", func(t *testing.T) {
		timeoutConfig := &config.TimeoutConfig{DefaultRequestTimeout: 1}

		router := gin.New()
		router.Use(RequestTimeout(timeoutConfig))
		router.GET("/written", func(c *gin.Context) {
			c.JSON(http.StatusAccepted, gin.H{"message": "accepted"})
			waitForCancel(c)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/written", nil))

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Empty(t, w.Header().Get("X-Timeout"))
	})

	t.Run("should leave panics to the recovery middleware", func(t *testing.T) {
		timeoutConfig := &config.TimeoutConfig{DefaultRequestTimeout: 1}

		router := gin.New()
		router.Use(gin.Recovery(), RequestTimeout(timeoutConfig))
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		w := httptest.NewRecorder()
		require.NotPanics(t, func() {
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("should propagate correlation ID on timeout", func(t *testing.T) {
		timeoutConfig := &config.TimeoutConfig{DefaultRequestTimeout: 1}

		router := gin.New()
		router.Use(CorrelationID(), RequestTimeout(timeoutConfig))
		router.GET("/slow", waitForCancel)

		req := httptest.NewRequest(http.MethodGet, "/slow", nil)
		req.Header.Set(CorrelationIDHeader, "550e8400-e29b-41d4-a716-446655440000")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", w.Header().Get(CorrelationIDHeader))
	})
}

func BenchmarkRequestTimeout(b *testing.B) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestTimeout(&config.TimeoutConfig{DefaultRequestTimeout: 30}))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
