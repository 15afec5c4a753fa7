package billingsrv

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentsift/sift/pkg/errx"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/billing"
)

// memoryAccountRepo is a mutex-guarded in-memory billing.Repository.
// DebitIfUnder holds the lock across the check and the increment, the
// same guarantee the SQL adapter gets from its single UPDATE.
type memoryAccountRepo struct {
	mu       sync.Mutex
	accounts map[kernel.AccountID]*billing.Account
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{accounts: make(map[kernel.AccountID]*billing.Account)}
}

func (r *memoryAccountRepo) Create(_ context.Context, account *billing.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.ID]; ok {
		return billing.ErrAccountAlreadyExists()
	}
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

func (r *memoryAccountRepo) GetByID(_ context.Context, id kernel.AccountID) (*billing.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, billing.ErrAccountNotFound()
	}
	cp := *account
	return &cp, nil
}

func (r *memoryAccountRepo) DebitIfUnder(_ context.Context, id kernel.AccountID, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return 0, billing.ErrAccountNotFound()
	}
	if account.MonthlyUsed >= limit {
		return 0, billing.ErrCreditExhausted()
	}
	account.MonthlyUsed++
	return account.MonthlyUsed, nil
}

func (r *memoryAccountRepo) Refund(_ context.Context, id kernel.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return billing.ErrAccountNotFound()
	}
	if account.MonthlyUsed > 0 {
		account.MonthlyUsed--
	}
	return nil
}

func (r *memoryAccountRepo) ResetUsage(_ context.Context, id kernel.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return billing.ErrAccountNotFound()
	}
	account.MonthlyUsed = 0
	account.PaymentWarning = false
	return nil
}

func (r *memoryAccountRepo) UpdatePlan(_ context.Context, id kernel.AccountID, plan billing.PlanTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return billing.ErrAccountNotFound()
	}
	account.Plan = plan
	return nil
}

func (r *memoryAccountRepo) SetPaymentWarning(_ context.Context, id kernel.AccountID, warning bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return billing.ErrAccountNotFound()
	}
	account.PaymentWarning = warning
	return nil
}

var testLimits = map[string]int{
	"free":     25,
	"starter":  100,
	"pro":      250,
	"business": 1000,
}

func newTestService(t *testing.T) (*BillingService, *memoryAccountRepo, kernel.AccountID) {
	t.Helper()
	repo := newMemoryAccountRepo()
	svc := NewBillingService(repo, testLimits)

	account, err := svc.CreateAccount(context.Background(), "owner@acme.com")
	require.NoError(t, err)

	return svc, repo, account.ID
}

func TestCheckAndDebitAllows(t *testing.T) {
	svc, _, accountID := newTestService(t)

	result, err := svc.CheckAndDebit(context.Background(), accountID)
	require.NoError(t, err)

	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.Used)
	assert.Equal(t, 24, result.Remaining)
	assert.Equal(t, 25, result.Limit)
}

func TestCheckAndDebitDeniesAtLimit(t *testing.T) {
	svc, _, accountID := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		result, err := svc.CheckAndDebit(ctx, accountID)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := svc.CheckAndDebit(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 25, result.Used)
	assert.Equal(t, 0, result.Remaining)
}

func TestConcurrentDebitsNeverOvershoot(t *testing.T) {
	svc, _, accountID := newTestService(t)
	ctx := context.Background()

	const attempts = 200 // well above the free limit of 25

	var wg sync.WaitGroup
	allowed := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.CheckAndDebit(ctx, accountID)
			if !assert.NoError(t, err) {
				allowed <- false
				return
			}
			allowed <- result.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	granted := 0
	for ok := range allowed {
		if ok {
			granted++
		}
	}

	assert.Equal(t, 25, granted)

	usage, err := svc.GetUsage(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 25, usage.Used)
}

func TestRefundDecrements(t *testing.T) {
	svc, _, accountID := newTestService(t)
	ctx := context.Background()

	_, err := svc.CheckAndDebit(ctx, accountID)
	require.NoError(t, err)

	require.NoError(t, svc.Refund(ctx, accountID))

	usage, err := svc.GetUsage(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Used)
}

func TestRefundNeverGoesNegative(t *testing.T) {
	svc, _, accountID := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Refund(ctx, accountID))

	usage, err := svc.GetUsage(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Used)
}

func TestWebhookRenewedResetsUsage(t *testing.T) {
	svc, _, accountID := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := svc.CheckAndDebit(ctx, accountID)
		require.NoError(t, err)
	}

	err := svc.HandleWebhook(ctx, billing.WebhookEvent{
		Type:      billing.EventSubscriptionRenewed,
		AccountID: accountID,
	})
	require.NoError(t, err)

	usage, err := svc.GetUsage(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Used)
	assert.Equal(t, 25, usage.Remaining)
}

func TestWebhookUpgradeRaisesLimitWithoutReset(t *testing.T) {
	svc, _, accountID := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := svc.CheckAndDebit(ctx, accountID)
		require.NoError(t, err)
	}

	err := svc.HandleWebhook(ctx, billing.WebhookEvent{
		Type:      billing.EventSubscriptionUpgraded,
		AccountID: accountID,
		Plan:      billing.PlanPro,
	})
	require.NoError(t, err)

	usage, err := svc.GetUsage(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, billing.PlanPro, usage.Plan)
	assert.Equal(t, 10, usage.Used)
	assert.Equal(t, 240, usage.Remaining)
}

func TestWebhookCancelledDropsToFree(t *testing.T) {
	svc, repo, accountID := newTestService(t)
	ctx := context.Background()

	require.NoError(t, repo.UpdatePlan(ctx, accountID, billing.PlanBusiness))
	for i := 0; i < 30; i++ {
		_, err := svc.CheckAndDebit(ctx, accountID)
		require.NoError(t, err)
	}

	err := svc.HandleWebhook(ctx, billing.WebhookEvent{
		Type:      billing.EventSubscriptionCancelled,
		AccountID: accountID,
	})
	require.NoError(t, err)

	usage, err := svc.GetUsage(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, billing.PlanFree, usage.Plan)
	assert.Equal(t, 0, usage.Used)
	assert.Equal(t, 25, usage.Limit)
}

func TestWebhookPaymentFailedSetsWarning(t *testing.T) {
	svc, repo, accountID := newTestService(t)
	ctx := context.Background()

	err := svc.HandleWebhook(ctx, billing.WebhookEvent{
		Type:      billing.EventPaymentFailed,
		AccountID: accountID,
	})
	require.NoError(t, err)

	account, err := repo.GetByID(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, account.PaymentWarning)
}

func TestWebhookUnknownEventRejected(t *testing.T) {
	svc, _, accountID := newTestService(t)

	err := svc.HandleWebhook(context.Background(), billing.WebhookEvent{
		Type:      "subscription.telepathy",
		AccountID: accountID,
	})
	assert.Error(t, err)
}

// brokenAccountRepo simulates a database outage on reads.
type brokenAccountRepo struct {
	*memoryAccountRepo
}

func (r *brokenAccountRepo) GetByID(context.Context, kernel.AccountID) (*billing.Account, error) {
	return nil, errors.New("connection refused")
}

func TestRepoOutageIsNotReportedAsMissingAccount(t *testing.T) {
	svc, repo, accountID := newTestService(t)
	ctx := context.Background()

	svc = NewBillingService(&brokenAccountRepo{memoryAccountRepo: repo}, testLimits)

	_, err := svc.CheckAndDebit(ctx, accountID)
	require.Error(t, err)
	assert.False(t, errors.Is(err, billing.ErrAccountNotFound()))

	var e *errx.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errx.TypeInternal, e.Type)

	_, err = svc.GetUsage(ctx, accountID)
	require.Error(t, err)
	assert.False(t, errors.Is(err, billing.ErrAccountNotFound()))

	err = svc.HandleWebhook(ctx, billing.WebhookEvent{
		Type:      billing.EventSubscriptionRenewed,
		AccountID: accountID,
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, billing.ErrAccountNotFound()))
}

func TestLimitForUnknownPlanFallsBackToFree(t *testing.T) {
	svc := NewBillingService(newMemoryAccountRepo(), testLimits)
	assert.Equal(t, 25, svc.LimitFor(billing.PlanTier("legacy-gold")))
}
