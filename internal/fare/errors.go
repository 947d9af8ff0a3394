package fare

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Reason classifies why a fare could not be produced
type Reason string

const (
	ReasonServiceUnavailable Reason = "service_unavailable"
	ReasonInvalidResponse    Reason = "invalid_response"
)

// Error is the only error type returned by an Estimator
type Error struct {
	Reason   Reason
	Strategy string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fare via %s: %s", e.Strategy, e.Reason)
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
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr.Reason, true
	}
	return "", false
}

func invalidResponse(format string, args ...interface{}) *Error {
	return &Error{Reason: ReasonInvalidResponse, Err: fmt.Errorf(format, args...)}
}

func classify(strategy string, err error) *Error {
	var ferr *Error
	if errors.As(err, &ferr) {
		out := *ferr
		out.Strategy = strategy
		return &out
	}

	reason := ReasonServiceUnavailable
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		reason = ReasonInvalidResponse
	}

	return &Error{Reason: reason, Strategy: strategy, Err: err}
}
