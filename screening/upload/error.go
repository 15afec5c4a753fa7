package upload

import (
	"net/http"

	"github.com/talentsift/sift/pkg/errx"
)

// Error Registry
var ErrRegistry = errx.NewRegistry("UPLOAD")

// Error codes
var (
	CodeEmptyBatch       = ErrRegistry.Register("EMPTY_BATCH", errx.TypeValidation, http.StatusBadRequest, "At least one file is required")
	CodeNotPDF           = ErrRegistry.Register("NOT_PDF", errx.TypeValidation, http.StatusBadRequest, "Only PDF files are accepted")
	CodeFileTooLarge     = ErrRegistry.Register("FILE_TOO_LARGE", errx.TypeValidation, http.StatusRequestEntityTooLarge, "File exceeds the size limit")
	CodeBatchNotFound    = ErrRegistry.Register("BATCH_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Upload batch not found")
	CodeItemNotFound     = ErrRegistry.Register("ITEM_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Upload item not found")
	CodeNotCancellable   = ErrRegistry.Register("NOT_CANCELLABLE", errx.TypeBusiness, http.StatusConflict, "Only queued items can be cancelled")
	CodeExtractionFailed = ErrRegistry.Register("EXTRACTION_FAILED", errx.TypeBusiness, http.StatusUnprocessableEntity, "Could not extract text from the PDF")
)

// Helper functions
func ErrEmptyBatch() *errx.Error {
	return ErrRegistry.New(CodeEmptyBatch)
}

func ErrNotPDF() *errx.Error {
	return ErrRegistry.New(CodeNotPDF)
}

func ErrFileTooLarge() *errx.Error {
	return ErrRegistry.New(CodeFileTooLarge)
}

func ErrBatchNotFound() *errx.Error {
	return ErrRegistry.New(CodeBatchNotFound)
}

func ErrItemNotFound() *errx.Error {
	return ErrRegistry.New(CodeItemNotFound)
}

func ErrNotCancellable() *errx.Error {
	return ErrRegistry.New(CodeNotCancellable)
}

func ErrExtractionFailed() *errx.Error {
	return ErrRegistry.New(CodeExtractionFailed)
}
