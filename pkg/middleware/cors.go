package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/trip-quote/pkg/config"
)

// CORS builds the cross-origin policy from the server's comma-separated origins.
// The session and correlation headers are both accepted and exposed so browser
// callers can keep their quote session.
func CORS(server config.ServerConfig, sessionHeader string) gin.HandlerFunc {
	if sessionHeader == "" {
		sessionHeader = DefaultSessionHeader
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = nil
	for _, origin := range strings.Split(server.CORSOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowOrigins = nil
			break
		}
		if origin != "" {
			corsConfig.AllowOrigins = append(corsConfig.AllowOrigins, origin)
		}
	}
	if !corsConfig.AllowAllOrigins && len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AddAllowHeaders(CorrelationIDHeader, sessionHeader)
	corsConfig.ExposeHeaders = []string{CorrelationIDHeader, sessionHeader, "X-Trace-ID", "Retry-After"}
	corsConfig.MaxAge = 24 * time.Hour

	return cors.New(corsConfig)
}
