package billingsrv

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/talentsift/sift/pkg/errx"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/pkg/logx"
	"github.com/talentsift/sift/pkg/metrics"
	"github.com/talentsift/sift/screening/billing"
)

// BillingService provides credit accounting for analysis dispatches.
// Only a missing account maps to the not-found error; any other
// repository failure surfaces as an internal error.
type BillingService struct {
	repo       billing.Repository
	planLimits map[string]int
}

// NewBillingService creates a new instance of the billing service
func NewBillingService(repo billing.Repository, planLimits map[string]int) *BillingService {
	return &BillingService{
		repo:       repo,
		planLimits: planLimits,
	}
}

// LimitFor resolves the monthly analysis quota for a plan tier.
// Unknown tiers fall back to the free quota rather than unlimited.
func (s *BillingService) LimitFor(plan billing.PlanTier) int {
	if limit, ok := s.planLimits[string(plan)]; ok {
		return limit
	}
	return s.planLimits[string(billing.PlanFree)]
}

// CreateAccount provisions a new account on the free tier
func (s *BillingService) CreateAccount(ctx context.Context, email kernel.Email) (*billing.Account, error) {
	now := time.Now()
	account := &billing.Account{
		ID:          kernel.NewAccountID(uuid.NewString()),
		Email:       email,
		Plan:        billing.PlanFree,
		MonthlyUsed: 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// CheckAndDebit atomically consumes one analysis credit. A denied debit
// is a normal outcome, not an error: the result carries Allowed=false
// and the caller decides what to do with the candidate.
func (s *BillingService) CheckAndDebit(ctx context.Context, accountID kernel.AccountID) (*billing.DebitResult, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, billing.ErrAccountNotFound()) {
			return nil, billing.ErrAccountNotFound().WithDetail("account_id", accountID.String())
		}
		return nil, errx.Wrap(err, "failed to load account", errx.TypeInternal)
	}

	limit := s.LimitFor(account.Plan)

	used, err := s.repo.DebitIfUnder(ctx, accountID, limit)
	if err != nil {
		if errors.Is(err, billing.ErrCreditExhausted()) {
			metrics.CreditDenialsTotal.Inc()
			logx.Infof("credit denied for account %s: %d/%d used", accountID, account.MonthlyUsed, limit)
			return &billing.DebitResult{
				Allowed:   false,
				Used:      account.MonthlyUsed,
				Remaining: 0,
				Limit:     limit,
			}, nil
		}
		return nil, errx.Wrap(err, "failed to debit account", errx.TypeInternal)
	}

	return &billing.DebitResult{
		Allowed:   true,
		Used:      used,
		Remaining: limit - used,
		Limit:     limit,
	}, nil
}

// Refund returns one previously debited credit
func (s *BillingService) Refund(ctx context.Context, accountID kernel.AccountID) error {
	if err := s.repo.Refund(ctx, accountID); err != nil {
		return errx.Wrap(err, "failed to refund credit", errx.TypeInternal)
	}
	return nil
}

// GetUsage returns the current quota consumption for an account
func (s *BillingService) GetUsage(ctx context.Context, accountID kernel.AccountID) (*billing.UsageResponse, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, billing.ErrAccountNotFound()) {
			return nil, billing.ErrAccountNotFound().WithDetail("account_id", accountID.String())
		}
		return nil, errx.Wrap(err, "failed to load account", errx.TypeInternal)
	}

	limit := s.LimitFor(account.Plan)

	return &billing.UsageResponse{
		AccountID: account.ID,
		Plan:      account.Plan,
		Used:      account.MonthlyUsed,
		Limit:     limit,
		Remaining: account.Remaining(limit),
	}, nil
}

// HandleWebhook applies a payment provider event to the account.
//
// renewed resets usage for the new period, upgraded switches the plan
// without touching the counter, cancelled drops the account to the free
// tier with a fresh counter, and a failed payment only flags the
// account so the UI can warn the owner.
func (s *BillingService) HandleWebhook(ctx context.Context, event billing.WebhookEvent) error {
	if _, err := s.repo.GetByID(ctx, event.AccountID); err != nil {
		if errors.Is(err, billing.ErrAccountNotFound()) {
			return billing.ErrAccountNotFound().WithDetail("account_id", event.AccountID.String())
		}
		return errx.Wrap(err, "failed to load account", errx.TypeInternal)
	}

	switch event.Type {
	case billing.EventSubscriptionRenewed:
		logx.Infof("subscription renewed for account %s", event.AccountID)
		return s.repo.ResetUsage(ctx, event.AccountID)

	case billing.EventSubscriptionUpgraded:
		if !event.Plan.IsValid() {
			return billing.ErrUnknownPlan().WithDetail("plan", string(event.Plan))
		}
		logx.Infof("plan changed to %s for account %s", event.Plan, event.AccountID)
		return s.repo.UpdatePlan(ctx, event.AccountID, event.Plan)

	case billing.EventSubscriptionCancelled:
		logx.Infof("subscription cancelled for account %s", event.AccountID)
		if err := s.repo.UpdatePlan(ctx, event.AccountID, billing.PlanFree); err != nil {
			return err
		}
		return s.repo.ResetUsage(ctx, event.AccountID)

	case billing.EventPaymentFailed:
		logx.Warnf("payment failed for account %s", event.AccountID)
		return s.repo.SetPaymentWarning(ctx, event.AccountID, true)

	default:
		return billing.ErrUnknownWebhookEvent().WithDetail("type", event.Type)
	}
}
