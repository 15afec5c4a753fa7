package billing

import "github.com/talentsift/sift/pkg/kernel"

// DebitResult is the outcome of a single credit check-and-debit.
type DebitResult struct {
	Allowed   bool `json:"allowed"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
}

// UsageResponse is returned by the usage endpoint
type UsageResponse struct {
	AccountID kernel.AccountID `json:"account_id"`
	Plan      PlanTier         `json:"plan"`
	Used      int              `json:"used"`
	Limit     int              `json:"limit"`
	Remaining int              `json:"remaining"`
}

// SignupRequest registers a new account
type SignupRequest struct {
	Email string `json:"email"`
}

// SignupResponse carries the new account and its first access token
type SignupResponse struct {
	AccountID   kernel.AccountID `json:"account_id"`
	Email       kernel.Email     `json:"email"`
	Plan        PlanTier         `json:"plan"`
	AccessToken string           `json:"access_token"`
}

// Webhook event types emitted by the payment provider.
const (
	EventSubscriptionRenewed   = "subscription.renewed"
	EventSubscriptionUpgraded  = "subscription.upgraded"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventPaymentFailed         = "payment.failed"
)

// WebhookEvent is the payload posted by the payment provider
type WebhookEvent struct {
	Type      string           `json:"type"`
	AccountID kernel.AccountID `json:"account_id"`
	Plan      PlanTier         `json:"plan,omitempty"`
}
