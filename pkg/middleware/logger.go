package middleware

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/trip-quote/pkg/logger"
	"go.uber.org/zap"
)

const maxPayloadLength = 512

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// probe paths are hit every few seconds and carry nothing worth logging
var quietPaths = map[string]bool{
	"/healthz":      true,
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

type bodyCapture struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyCapture) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *bodyCapture) WriteString(data string) (int, error) {
	w.body.WriteString(data)
	return w.ResponseWriter.WriteString(data)
}

// RequestLogger logs one line per request with sanitized request and
// response bodies. Server errors log at error level, client errors at warn.
func RequestLogger(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if quietPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		requestBody := readRequestBody(c)
		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", status),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("response_size", capture.body.Len()),
		}
		if requestBody != "" {
			fields = append(fields, zap.String("request_body", requestBody))
		}
		if responseBody := sanitizePayload(capture.body.Bytes()); responseBody != "" {
			fields = append(fields, zap.String("response_body", responseBody))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log := logger.WithContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("Request failed", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("Request rejected", fields...)
		default:
			log.Info("Request completed", fields...)
		}
	}
}

func readRequestBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(data))
	return sanitizePayload(data)
}

// sanitizePayload strips markup and control characters, collapses
// whitespace and truncates to maxPayloadLength
func sanitizePayload(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}

	cleaned := htmlTagPattern.ReplaceAllString(string(payload), "")
	cleaned = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if len(cleaned) > maxPayloadLength {
		cleaned = cleaned[:maxPayloadLength] + "...(truncated)"
	}
	return cleaned
}
