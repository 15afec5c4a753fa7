package analysissrv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentsift/sift/pkg/config"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/analysis"
	"github.com/talentsift/sift/screening/billing/billingsrv"
	"github.com/talentsift/sift/screening/candidate"
	"github.com/talentsift/sift/screening/candidate/candidatesrv"
	"github.com/talentsift/sift/screening/job"
	"github.com/talentsift/sift/screening/screeningtest"
)

type fixture struct {
	dispatcher *Dispatcher
	tasks      *screeningtest.MemoryTaskRepo
	queue      *screeningtest.MemoryTaskQueue
	billing    *billingsrv.BillingService
	candidates *candidatesrv.CandidateService
	jobs       *screeningtest.MemoryJobRepo
	accountID  kernel.AccountID
	jobID      kernel.JobID
}

var testLimits = map[string]int{"free": 25, "starter": 100, "pro": 250, "business": 1000}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()
	ctx := context.Background()

	accounts := screeningtest.NewMemoryAccountRepo()
	billingSvc := billingsrv.NewBillingService(accounts, testLimits)
	account, err := billingSvc.CreateAccount(ctx, "owner@acme.com")
	require.NoError(t, err)

	jobs := screeningtest.NewMemoryJobRepo()
	jobID := kernel.NewJobID(uuid.NewString())
	require.NoError(t, jobs.Create(ctx, &job.Job{
		ID:          jobID,
		AccountID:   account.ID,
		Title:       "Backend Engineer",
		Description: "Go and Postgres",
		Status:      job.JobStatusOpen,
	}))

	candidateSvc := candidatesrv.NewCandidateService(
		screeningtest.NewMemoryCandidateRepo(),
		screeningtest.NewMemoryStorage(),
	)

	tasks := screeningtest.NewMemoryTaskRepo()
	queue := screeningtest.NewMemoryTaskQueue()

	return &fixture{
		dispatcher: NewDispatcher(tasks, queue, billingSvc, candidateSvc, jobs, policy),
		tasks:      tasks,
		queue:      queue,
		billing:    billingSvc,
		candidates: candidateSvc,
		jobs:       jobs,
		accountID:  account.ID,
		jobID:      jobID,
	}
}

func (f *fixture) addCandidate(t *testing.T, name string) *candidate.Candidate {
	t.Helper()
	c, err := f.candidates.CreateFromUpload(
		context.Background(), f.accountID, f.jobID, name, "cv text for "+name,
		kernel.StoragePath(f.jobID.String()+"/1_"+name+".pdf"),
	)
	require.NoError(t, err)
	return c
}

func TestDispatchHappyPath(t *testing.T) {
	f := newFixture(t, config.PolicyChargeOnAttempt)
	ctx := context.Background()
	c := f.addCandidate(t, "jane")

	result, err := f.dispatcher.Dispatch(ctx, f.accountID, c)
	require.NoError(t, err)

	assert.True(t, result.Dispatched)
	assert.Equal(t, 1, result.Used)
	assert.Equal(t, 24, result.Remaining)

	// One message on the queue, candidate marked dispatched.
	size, err := f.queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	updated, err := f.candidates.GetByID(ctx, f.accountID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, candidate.AnalysisDispatched, updated.Status)
}

func TestDispatchIsIdempotent(t *testing.T) {
	f := newFixture(t, config.PolicyChargeOnAttempt)
	ctx := context.Background()
	c := f.addCandidate(t, "jane")

	first, err := f.dispatcher.Dispatch(ctx, f.accountID, c)
	require.NoError(t, err)
	require.True(t, first.Dispatched)

	// The same candidate dispatched again while in flight burns no
	// second credit and enqueues nothing.
	second, err := f.dispatcher.Dispatch(ctx, f.accountID, c)
	require.NoError(t, err)
	assert.False(t, second.Dispatched)
	assert.Equal(t, analysis.ReasonAlreadyInFlight, second.Reason)

	usage, err := f.billing.GetUsage(ctx, f.accountID)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Used)

	size, err := f.queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestDispatchDeniedWhenCreditsExhausted(t *testing.T) {
	f := newFixture(t, config.PolicyChargeOnAttempt)
	ctx := context.Background()

	// Burn the whole free quota.
	for i := 0; i < 25; i++ {
		debit, err := f.billing.CheckAndDebit(ctx, f.accountID)
		require.NoError(t, err)
		require.True(t, debit.Allowed)
	}

	c := f.addCandidate(t, "jane")
	result, err := f.dispatcher.Dispatch(ctx, f.accountID, c)
	require.NoError(t, err)

	assert.False(t, result.Dispatched)
	assert.Equal(t, analysis.ReasonCreditExhausted, result.Reason)

	// Candidate stays pending and retryable, the guard task is gone.
	updated, err := f.candidates.GetByID(ctx, f.accountID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, candidate.AnalysisPending, updated.Status)
	assert.True(t, updated.CanDispatch())
	assert.Empty(t, f.tasks.All())
}

func TestDispatchSkipsCompletedCandidate(t *testing.T) {
	f := newFixture(t, config.PolicyChargeOnAttempt)
	ctx := context.Background()
	c := f.addCandidate(t, "jane")

	_, err := f.candidates.ApplyAnalysisResult(ctx, f.accountID, c.ID, candidate.AnalysisResult{CVRate: 90})
	require.NoError(t, err)

	done, err := f.candidates.GetByID(ctx, f.accountID, c.ID)
	require.NoError(t, err)

	result, err := f.dispatcher.Dispatch(ctx, f.accountID, done)
	require.NoError(t, err)
	assert.False(t, result.Dispatched)
	assert.Equal(t, analysis.ReasonNotDispatchable, result.Reason)
}

func TestEnqueueFailureChargeOnAttemptKeepsDebit(t *testing.T) {
	f := newFixture(t, config.PolicyChargeOnAttempt)
	ctx := context.Background()
	c := f.addCandidate(t, "jane")

	f.queue.EnqueueErr = errors.New("redis down")

	_, err := f.dispatcher.Dispatch(ctx, f.accountID, c)
	require.Error(t, err)

	usage, err := f.billing.GetUsage(ctx, f.accountID)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Used)
}

func TestEnqueueFailureChargeOnSuccessRefunds(t *testing.T) {
	f := newFixture(t, config.PolicyChargeOnSuccess)
	ctx := context.Background()
	c := f.addCandidate(t, "jane")

	f.queue.EnqueueErr = errors.New("redis down")

	_, err := f.dispatcher.Dispatch(ctx, f.accountID, c)
	require.Error(t, err)

	usage, err := f.billing.GetUsage(ctx, f.accountID)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Used)
}

func TestEnqueueFailureLeavesCandidateRetryable(t *testing.T) {
	f := newFixture(t, config.PolicyChargeOnSuccess)
	ctx := context.Background()
	c := f.addCandidate(t, "jane")

	f.queue.EnqueueErr = errors.New("redis down")
	_, err := f.dispatcher.Dispatch(ctx, f.accountID, c)
	require.Error(t, err)

	// The dispatched status is rolled back on enqueue failure.
	updated, err := f.candidates.GetByID(ctx, f.accountID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, candidate.AnalysisPending, updated.Status)

	// The failed guard task is terminal, so a later dispatch works.
	f.queue.EnqueueErr = nil
	result, err := f.dispatcher.DispatchByID(ctx, f.accountID, c.ID)
	require.NoError(t, err)
	assert.True(t, result.Dispatched)
}

// fastWorkerQueue completes the queued analysis synchronously, the way
// a worker that drains the queue immediately after Enqueue would.
type fastWorkerQueue struct {
	*screeningtest.MemoryTaskQueue
	tasks      *screeningtest.MemoryTaskRepo
	candidates *candidatesrv.CandidateService
}

func (q *fastWorkerQueue) Enqueue(ctx context.Context, taskID kernel.TaskID, payload any) error {
	if err := q.MemoryTaskQueue.Enqueue(ctx, taskID, payload); err != nil {
		return err
	}
	msg := payload.(analysis.TaskMessage)
	if _, err := q.candidates.ApplyAnalysisResult(ctx, msg.AccountID, msg.Request.CandidateID, candidate.AnalysisResult{CVRate: 91}); err != nil {
		return err
	}
	return q.tasks.MarkCompleted(ctx, taskID)
}

func TestDispatchKeepsFastWorkerCompletion(t *testing.T) {
	f := newFixture(t, config.PolicyChargeOnAttempt)
	ctx := context.Background()
	c := f.addCandidate(t, "jane")

	queue := &fastWorkerQueue{MemoryTaskQueue: f.queue, tasks: f.tasks, candidates: f.candidates}
	dispatcher := NewDispatcher(f.tasks, queue, f.billing, f.candidates, f.jobs, config.PolicyChargeOnAttempt)

	result, err := dispatcher.Dispatch(ctx, f.accountID, c)
	require.NoError(t, err)
	require.True(t, result.Dispatched)

	// The worker's final write wins over the dispatcher's status update.
	updated, err := f.candidates.GetByID(ctx, f.accountID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, candidate.AnalysisCompleted, updated.Status)
	assert.Equal(t, 91, updated.CVRate)
}

func TestResumeScreeningStopsAtExhaustion(t *testing.T) {
	f := newFixture(t, config.PolicyChargeOnAttempt)
	ctx := context.Background()

	// Leave exactly 2 credits.
	for i := 0; i < 23; i++ {
		debit, err := f.billing.CheckAndDebit(ctx, f.accountID)
		require.NoError(t, err)
		require.True(t, debit.Allowed)
	}

	ids := make([]kernel.CandidateID, 0, 5)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, f.addCandidate(t, name).ID)
	}

	resp, err := f.dispatcher.ResumeScreening(ctx, f.accountID, analysis.ResumeScreeningRequest{
		JobID:        f.jobID,
		CandidateIDs: ids,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Dispatched)
	assert.Equal(t, 3, resp.Denied)

	usage, err := f.billing.GetUsage(ctx, f.accountID)
	require.NoError(t, err)
	assert.Equal(t, 25, usage.Used)
}

func TestDispatchByIDUnknownCandidate(t *testing.T) {
	f := newFixture(t, config.PolicyChargeOnAttempt)

	_, err := f.dispatcher.DispatchByID(context.Background(), f.accountID, kernel.NewCandidateID("nope"))
	assert.Error(t, err)
}

func TestRetryDelayGrowsExponentially(t *testing.T) {
	task := &analysis.Task{AttemptCount: 1, MaxAttempts: 3}
	assert.Equal(t, 2*time.Minute, task.RetryDelay())
	task.AttemptCount = 2
	assert.Equal(t, 4*time.Minute, task.RetryDelay())
}
