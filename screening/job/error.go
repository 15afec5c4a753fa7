package job

import (
	"net/http"

	"github.com/talentsift/sift/pkg/errx"
)

// Error Registry
var ErrRegistry = errx.NewRegistry("JOB")

// Error codes
var (
	CodeJobNotFound   = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Job not found")
	CodeAlreadyExists = ErrRegistry.Register("ALREADY_EXISTS", errx.TypeConflict, http.StatusConflict, "Job already exists")
	CodeJobClosed     = ErrRegistry.Register("CLOSED", errx.TypeBusiness, http.StatusConflict, "Job is closed")
	CodeInvalidJob    = ErrRegistry.Register("INVALID", errx.TypeValidation, http.StatusBadRequest, "Job title and description are required")
	CodeGeneration    = ErrRegistry.Register("QUESTION_GENERATION", errx.TypeUnavailable, http.StatusServiceUnavailable, "Failed to generate assessment questions")
)

// Helper functions
func ErrJobNotFound() *errx.Error {
	return ErrRegistry.New(CodeJobNotFound)
}

func ErrAlreadyExists() *errx.Error {
	return ErrRegistry.New(CodeAlreadyExists)
}

func ErrJobClosed() *errx.Error {
	return ErrRegistry.New(CodeJobClosed)
}

func ErrInvalidJob() *errx.Error {
	return ErrRegistry.New(CodeInvalidJob)
}

func ErrGeneration() *errx.Error {
	return ErrRegistry.New(CodeGeneration)
}
