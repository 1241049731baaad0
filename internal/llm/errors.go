package llm

import (
	"errors"
	"fmt"
)

// Sentinels matched by errors.Is through UnavailableError and InferenceError.
var (
	ErrInferenceUnavailable = errors.New("inference unavailable")
	ErrInference            = errors.New("inference error")
)

// UnavailableError means the backend could not be reached, did not answer in
// time, or does not have the requested model loaded.
type UnavailableError struct {
	Message string
	Cause   error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("inference unavailable: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("inference unavailable: %s", e.Message)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrInferenceUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrInferenceUnavailable
}

// InferenceError is any other backend-reported failure: a rejected request
// (including an oversized context), an internal error or a malformed response.
type InferenceError struct {
	Message    string
	StatusCode int // HTTP status when the backend returned one
	Cause      error
}

func (e *InferenceError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("inference error: %s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("inference error: %s", msg)
}

func (e *InferenceError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrInference.
func (e *InferenceError) Is(target error) bool {
	return target == ErrInference
}
