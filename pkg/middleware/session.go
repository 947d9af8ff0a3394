package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/trip-quote/pkg/logger"
)

const (
	// DefaultSessionHeader carries the caller's quote session
	DefaultSessionHeader = "X-Session-ID"
	// SessionIDKey is the gin context key for the session ID
	SessionIDKey = "session_id"

	sessionSuppliedKey = "session_supplied"
	maxSessionIDLength = 128
)

// Session resolves the quote session from header, minting a new one when the
// caller sent none or an unusable value. The resolved ID is echoed back.
func Session(header string) gin.HandlerFunc {
	if header == "" {
		header = DefaultSessionHeader
	}

	return func(c *gin.Context) {
		sessionID := strings.TrimSpace(c.GetHeader(header))
		supplied := validSessionID(sessionID)
		if !supplied {
			sessionID = uuid.New().String()
		}

		c.Set(SessionIDKey, sessionID)
		c.Set(sessionSuppliedKey, supplied)
		ctx := logger.ContextWithSessionID(c.Request.Context(), sessionID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(header, sessionID)

		c.Next()
	}
}

// GetSessionID returns the session resolved by Session
func GetSessionID(c *gin.Context) string {
	if id, exists := c.Get(SessionIDKey); exists {
		if sessionID, ok := id.(string); ok {
			return sessionID
		}
	}
	return logger.SessionIDFromContext(c.Request.Context())
}

// SessionSupplied reports whether the caller presented its own session ID
func SessionSupplied(c *gin.Context) bool {
	return c.GetBool(sessionSuppliedKey)
}

func validSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
