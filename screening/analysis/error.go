package analysis

import (
	"net/http"

	"github.com/talentsift/sift/pkg/errx"
)

// Error Registry
var ErrRegistry = errx.NewRegistry("ANALYSIS")

// Error codes
var (
	CodeTaskNotFound    = ErrRegistry.Register("TASK_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Analysis task not found")
	CodeAlreadyInFlight = ErrRegistry.Register("ALREADY_IN_FLIGHT", errx.TypeConflict, http.StatusConflict, "An analysis is already in flight for this candidate")
	CodeEnqueueFailed   = ErrRegistry.Register("ENQUEUE_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "Failed to enqueue analysis task")
	CodeAnalyzerFailed  = ErrRegistry.Register("ANALYZER_FAILED", errx.TypeUnavailable, http.StatusServiceUnavailable, "Analysis call failed")
	CodeMaxRetries      = ErrRegistry.Register("MAX_RETRIES", errx.TypeBusiness, http.StatusConflict, "Analysis gave up after maximum retries")
	CodeNotDispatchable = ErrRegistry.Register("NOT_DISPATCHABLE", errx.TypeBusiness, http.StatusConflict, "Candidate is not in a dispatchable state")
)

// Helper functions
func ErrTaskNotFound() *errx.Error {
	return ErrRegistry.New(CodeTaskNotFound)
}

func ErrAlreadyInFlight() *errx.Error {
	return ErrRegistry.New(CodeAlreadyInFlight)
}

func ErrEnqueueFailed() *errx.Error {
	return ErrRegistry.New(CodeEnqueueFailed)
}

func ErrAnalyzerFailed() *errx.Error {
	return ErrRegistry.New(CodeAnalyzerFailed)
}

func ErrMaxRetries() *errx.Error {
	return ErrRegistry.New(CodeMaxRetries)
}

func ErrNotDispatchable() *errx.Error {
	return ErrRegistry.New(CodeNotDispatchable)
}
