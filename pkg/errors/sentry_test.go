package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/richxcame/trip-quote/pkg/common"
	"github.com/stretchr/testify/assert"
)

func TestShouldReportError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		want       bool
	}{
		{"nil error", nil, 500, false},
		{"plain server error", errors.New("boom"), 500, true},
		{"client error", errors.New("bad input"), 400, false},
		{"rate limited", errors.New("slow down"), 429, true},
		{"app error below 500", common.NewNotFoundError("place not found", nil), 500, false},
		{"wrapped app error 503", fmt.Errorf("quote: %w", common.NewServiceUnavailableError("routing down", nil)), 503, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldReportError(tt.err, tt.statusCode))
		})
	}
}

func TestParseRate(t *testing.T) {
	assert.Equal(t, 0.5, parseRate("0.5", 1))
	assert.Equal(t, 1.0, parseRate("", 1))
	assert.Equal(t, 0.1, parseRate("abc", 0.1))
	assert.Equal(t, 0.1, parseRate("2", 0.1))
}

func TestInitSentryRequiresDSN(t *testing.T) {
	err := InitSentry(&SentryConfig{})
	assert.Error(t, err)
}
