package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/market-research/internal/llm"
	"github.com/jonathan/market-research/internal/pipeline"
)

// Error kinds reported to clients
const (
	KindInvalidRequest = "invalid_request"
	KindInvalidBrief   = "invalid_brief"
	KindUnavailable    = "inference_unavailable"
	KindInference      = "inference_error"
	KindBusy           = "busy"
	KindInternal       = "internal"
)

// ErrorResponse is the JSON body of every error reply and SSE error event
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Stage string `json:"stage,omitempty"` // failing stage key
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrBusy indicates no run slot became free before the request gave up
type ErrBusy struct {
	Cause error
}

func (e *ErrBusy) Error() string {
	return fmt.Sprintf("server busy: too many runs in progress: %v", e.Cause)
}

func (e *ErrBusy) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validationErr *ErrValidation
	var busyErr *ErrBusy
	switch {
	case errors.As(err, &validationErr), errors.Is(err, pipeline.ErrInvalidBrief):
		return http.StatusBadRequest
	case errors.As(err, &busyErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrInferenceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrInference):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorKind classifies an error for the response body
func errorKind(err error) string {
	var validationErr *ErrValidation
	var busyErr *ErrBusy
	switch {
	case errors.As(err, &validationErr):
		return KindInvalidRequest
	case errors.Is(err, pipeline.ErrInvalidBrief):
		return KindInvalidBrief
	case errors.As(err, &busyErr):
		return KindBusy
	case errors.Is(err, llm.ErrInferenceUnavailable),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindUnavailable
	case errors.Is(err, llm.ErrInference):
		return KindInference
	default:
		return KindInternal
	}
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return KindInvalidRequest
	case http.StatusServiceUnavailable:
		return KindBusy
	default:
		return KindInternal
	}
}

// newErrorResponse describes err, naming the failing stage when there is one
func newErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error(), Kind: errorKind(err)}
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		resp.Stage = stageErr.Stage.Key()
	}
	return resp
}
