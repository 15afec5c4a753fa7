package billing

import (
	"time"

	"github.com/talentsift/sift/pkg/kernel"
)

// PlanTier represents the subscription tier of an account
type PlanTier string

const (
	PlanFree     PlanTier = "free"
	PlanStarter  PlanTier = "starter"
	PlanPro      PlanTier = "pro"
	PlanBusiness PlanTier = "business"
)

// IsValid checks whether the tier is a known plan
func (p PlanTier) IsValid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanPro, PlanBusiness:
		return true
	}
	return false
}

// Account is the billing view of a tenant: its plan and how much of the
// monthly analysis quota it has consumed.
type Account struct {
	ID             kernel.AccountID `db:"id" json:"id"`
	Email          kernel.Email     `db:"email" json:"email"`
	Plan           PlanTier         `db:"plan" json:"plan"`
	MonthlyUsed    int              `db:"monthly_used" json:"monthly_used"`
	PaymentWarning bool             `db:"payment_warning" json:"payment_warning"`
	RenewedAt      *time.Time       `db:"renewed_at" json:"renewed_at,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// ============================================================================
// Domain Methods
// ============================================================================

// Remaining returns how many analyses the account may still run this
// period given its plan limit.
func (a *Account) Remaining(limit int) int {
	if a.MonthlyUsed >= limit {
		return 0
	}
	return limit - a.MonthlyUsed
}

// IsExhausted checks if the monthly quota is fully spent
func (a *Account) IsExhausted(limit int) bool {
	return a.MonthlyUsed >= limit
}
