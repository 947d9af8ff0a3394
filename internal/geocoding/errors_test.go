package geocoding

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/richxcame/trip-quote/pkg/resilience"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	var syntaxErr error = &json.SyntaxError{}

	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{"already classified", notFound(nil), ReasonNotFound},
		{"wrapped classified", fmt.Errorf("wrap: %w", invalidResponse("bad")), ReasonInvalidResponse},
		{"breaker open", fmt.Errorf("geocoding-opencage unavailable: %w", resilience.ErrCircuitOpen), ReasonServiceUnavailable},
		{"json syntax", syntaxErr, ReasonInvalidResponse},
		{"anything else", errors.New("connection refused"), ReasonServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("opencage", "Penn Station", tt.err)
			assert.Equal(t, tt.want, got.Reason)
			assert.Equal(t, "opencage", got.Provider)
			assert.Equal(t, "Penn Station", got.Query)
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := classify("google", "x", cause)

	assert.ErrorIs(t, err, cause)
	reason, ok := ReasonOf(fmt.Errorf("outer: %w", err))
	assert.True(t, ok)
	assert.Equal(t, ReasonServiceUnavailable, reason)

	_, ok = ReasonOf(cause)
	assert.False(t, ok)
}
