package geocoding

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Reason classifies why a lookup failed
type Reason string

const (
	ReasonNotFound           Reason = "not_found"
	ReasonServiceUnavailable Reason = "service_unavailable"
	ReasonInvalidResponse    Reason = "invalid_response"
)

// ErrEmptyQuery marks a blank query rejected before any network call
var ErrEmptyQuery = errors.New("empty place query")

// Error is the only error type returned by a Geocoder
type Error struct {
	Reason   Reason
	Provider string
	Query    string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("geocoding %q via %s: %s", e.Query, e.Provider, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the failure reason from err
func ReasonOf(err error) (Reason, bool) {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Reason, true
	}
	return "", false
}

func notFound(err error) *Error {
	return &Error{Reason: ReasonNotFound, Err: err}
}

func invalidResponse(format string, args ...interface{}) *Error {
	return &Error{Reason: ReasonInvalidResponse, Err: fmt.Errorf(format, args...)}
}

// classify turns any provider error into an *Error. Errors already classified
// by the provider keep their reason; malformed JSON is an invalid response and
// everything else (timeouts, open breaker, HTTP status) means the upstream is unavailable.
func classify(provider, query string, err error) *Error {
	var gerr *Error
	if errors.As(err, &gerr) {
		out := *gerr
		out.Provider = provider
		out.Query = query
		return &out
	}

	reason := ReasonServiceUnavailable
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		reason = ReasonInvalidResponse
	}

	return &Error{Reason: reason, Provider: provider, Query: query, Err: err}
}

// countsAgainstBreaker reports whether err indicates an unhealthy upstream
func countsAgainstBreaker(err error) bool {
	if err == nil {
		return false
	}
	reason, ok := ReasonOf(err)
	return !ok || reason != ReasonNotFound
}
