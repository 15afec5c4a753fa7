package billing

import (
	"net/http"

	"github.com/talentsift/sift/pkg/errx"
)

// Error Registry
var ErrRegistry = errx.NewRegistry("BILLING")

// Error codes
var (
	CodeAccountNotFound      = ErrRegistry.Register("ACCOUNT_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Account not found")
	CodeAccountAlreadyExists = ErrRegistry.Register("ACCOUNT_ALREADY_EXISTS", errx.TypeConflict, http.StatusConflict, "Account already exists")
	CodeCreditExhausted      = ErrRegistry.Register("CREDIT_EXHAUSTED", errx.TypeBusiness, http.StatusPaymentRequired, "Monthly analysis quota exhausted")
	CodeUnknownPlan          = ErrRegistry.Register("UNKNOWN_PLAN", errx.TypeValidation, http.StatusBadRequest, "Unknown plan tier")
	CodeUnknownWebhookEvent  = ErrRegistry.Register("UNKNOWN_WEBHOOK_EVENT", errx.TypeValidation, http.StatusBadRequest, "Unknown webhook event type")
	CodeInvalidEmail         = ErrRegistry.Register("INVALID_EMAIL", errx.TypeValidation, http.StatusBadRequest, "A valid email address is required")
)

// Helper functions
func ErrAccountNotFound() *errx.Error {
	return ErrRegistry.New(CodeAccountNotFound)
}

func ErrAccountAlreadyExists() *errx.Error {
	return ErrRegistry.New(CodeAccountAlreadyExists)
}

func ErrCreditExhausted() *errx.Error {
	return ErrRegistry.New(CodeCreditExhausted)
}

func ErrUnknownPlan() *errx.Error {
	return ErrRegistry.New(CodeUnknownPlan)
}

func ErrInvalidEmail() *errx.Error {
	return ErrRegistry.New(CodeInvalidEmail)
}

func ErrUnknownWebhookEvent() *errx.Error {
	return ErrRegistry.New(CodeUnknownWebhookEvent)
}
