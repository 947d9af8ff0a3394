package routing

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Reason classifies why a route could not be produced
type Reason string

const (
	ReasonNoPathFound        Reason = "no_path_found"
	ReasonServiceUnavailable Reason = "service_unavailable"
	ReasonInvalidResponse    Reason = "invalid_response"
)

// Error is the only error type returned by a Router
type Error struct {
	Reason   Reason
	Provider string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("routing via %s: %s", e.Provider, e.Reason)
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
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Reason, true
	}
	return "", false
}

func noPath(format string, args ...interface{}) *Error {
	return &Error{Reason: ReasonNoPathFound, Err: fmt.Errorf(format, args...)}
}

func invalidResponse(format string, args ...interface{}) *Error {
	return &Error{Reason: ReasonInvalidResponse, Err: fmt.Errorf(format, args...)}
}

func classify(provider string, err error) *Error {
	var rerr *Error
	if errors.As(err, &rerr) {
		out := *rerr
		out.Provider = provider
		return &out
	}

	reason := ReasonServiceUnavailable
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		reason = ReasonInvalidResponse
	}

	return &Error{Reason: reason, Provider: provider, Err: err}
}

func countsAgainstBreaker(err error) bool {
	if err == nil {
		return false
	}
	reason, ok := ReasonOf(err)
	return !ok || reason != ReasonNoPathFound
}
