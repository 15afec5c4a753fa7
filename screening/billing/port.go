package billing

import (
	"context"

	"github.com/talentsift/sift/pkg/kernel"
)

// Repository defines persistence operations for billing accounts
type Repository interface {
	// Create inserts a new account
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by its ID
	GetByID(ctx context.Context, id kernel.AccountID) (*Account, error)

	// DebitIfUnder atomically increments monthly_used when it is still
	// below limit. It returns the post-increment counter, or
	// ErrCreditExhausted when the quota is already spent. The check and
	// the increment happen in a single statement so concurrent debits
	// can never overshoot the limit.
	DebitIfUnder(ctx context.Context, id kernel.AccountID, limit int) (used int, err error)

	// Refund decrements monthly_used by one, never below zero
	Refund(ctx context.Context, id kernel.AccountID) error

	// ResetUsage zeroes monthly_used and clears the payment warning
	ResetUsage(ctx context.Context, id kernel.AccountID) error

	// UpdatePlan changes the plan tier
	UpdatePlan(ctx context.Context, id kernel.AccountID, plan PlanTier) error

	// SetPaymentWarning flips the payment warning flag
	SetPaymentWarning(ctx context.Context, id kernel.AccountID, warning bool) error
}
