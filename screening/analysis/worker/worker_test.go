package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/analysis"
	"github.com/talentsift/sift/screening/candidate"
	"github.com/talentsift/sift/screening/candidate/candidatesrv"
	"github.com/talentsift/sift/screening/realtime"
	"github.com/talentsift/sift/screening/screeningtest"
)

type workerFixture struct {
	worker     *AnalysisWorker
	tasks      *screeningtest.MemoryTaskRepo
	queue      *screeningtest.MemoryTaskQueue
	candidates *candidatesrv.CandidateService
	pubsub     *screeningtest.MemoryPubSub
	analyzer   *screeningtest.FakeAnalyzer
	accountID  kernel.AccountID
	jobID      kernel.JobID
}

func newWorkerFixture(t *testing.T, analyzer *screeningtest.FakeAnalyzer) *workerFixture {
	t.Helper()

	tasks := screeningtest.NewMemoryTaskRepo()
	queue := screeningtest.NewMemoryTaskQueue()
	pubsub := screeningtest.NewMemoryPubSub()
	candidates := candidatesrv.NewCandidateService(
		screeningtest.NewMemoryCandidateRepo(),
		screeningtest.NewMemoryStorage(),
	)

	return &workerFixture{
		worker:     NewAnalysisWorker(queue, tasks, analyzer, candidates, pubsub, 1),
		tasks:      tasks,
		queue:      queue,
		candidates: candidates,
		pubsub:     pubsub,
		analyzer:   analyzer,
		accountID:  kernel.NewAccountID("account-a"),
		jobID:      kernel.NewJobID("job-a"),
	}
}

// seedTask creates a dispatched candidate plus its pending task and
// returns the queue message a dispatcher would have produced.
func (f *workerFixture) seedTask(t *testing.T) (*candidate.Candidate, *analysis.TaskMessage) {
	t.Helper()
	ctx := context.Background()

	c, err := f.candidates.CreateFromUpload(ctx, f.accountID, f.jobID, "jane_cv", "cv text", "job-a/1_jane.pdf")
	require.NoError(t, err)
	require.NoError(t, f.candidates.SetStatus(ctx, f.accountID, c.ID, candidate.AnalysisDispatched))

	now := time.Now()
	task := &analysis.Task{
		ID:          kernel.NewTaskID(uuid.NewString()),
		CandidateID: c.ID,
		AccountID:   f.accountID,
		JobID:       f.jobID,
		Status:      analysis.TaskStatusPending,
		MaxAttempts: 3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, f.tasks.CreateIfAbsent(ctx, task))

	return c, &analysis.TaskMessage{
		TaskID:    task.ID,
		AccountID: f.accountID,
		Request: analysis.AnalysisRequest{
			CandidateID:    c.ID,
			JobID:          f.jobID,
			CVText:         "cv text",
			JobDescription: "Go and Postgres",
			JobTitle:       "Backend Engineer",
		},
		MaxAttempts: 3,
	}
}

func TestProcessTaskWritesResultBack(t *testing.T) {
	f := newWorkerFixture(t, &screeningtest.FakeAnalyzer{
		Result: &candidate.AnalysisResult{
			CVRate: 88,
			Relevance: candidate.RelevanceAnalysis{
				MatchingSkills: []string{"go", "postgres"},
				MissingSkills:  []string{"k8s"},
				Summary:        "solid fit",
			},
			Name:  "Jane Doe",
			Email: "jane@doe.dev",
		},
	})
	ctx := context.Background()

	c, message := f.seedTask(t)
	require.NoError(t, f.worker.ProcessTask(ctx, message))

	updated, err := f.candidates.GetByID(ctx, f.accountID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 88, updated.CVRate)
	assert.Equal(t, candidate.AnalysisCompleted, updated.Status)
	assert.Equal(t, "Jane Doe", updated.Name)
	require.NotNil(t, updated.Relevance)
	assert.Equal(t, []string{"go", "postgres"}, updated.Relevance.MatchingSkills)

	task, err := f.tasks.GetByID(ctx, message.TaskID)
	require.NoError(t, err)
	assert.Equal(t, analysis.TaskStatusCompleted, task.Status)
}

func TestProcessTaskPublishesUpdateEvent(t *testing.T) {
	f := newWorkerFixture(t, &screeningtest.FakeAnalyzer{})
	ctx := context.Background()

	sub, err := f.pubsub.Subscribe(ctx, f.jobID)
	require.NoError(t, err)
	defer sub.Close()

	c, message := f.seedTask(t)
	require.NoError(t, f.worker.ProcessTask(ctx, message))

	select {
	case event := <-sub.Events():
		assert.Equal(t, realtime.EventCandidateUpdated, event.Type)
		assert.Equal(t, f.jobID, event.JobID)
		require.NotNil(t, event.Candidate)
		assert.Equal(t, c.ID, event.Candidate.ID)
		assert.Equal(t, candidate.AnalysisCompleted, event.Candidate.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("no realtime event within the delivery window")
	}
}

func TestTransientFailureSchedulesRetry(t *testing.T) {
	f := newWorkerFixture(t, &screeningtest.FakeAnalyzer{FailFirst: 1})
	ctx := context.Background()

	c, message := f.seedTask(t)

	err := f.worker.ProcessTask(ctx, message)
	require.Error(t, err)

	// First failure lands on the delayed queue, task back to pending.
	assert.Equal(t, 1, f.queue.DelayedSize())
	task, getErr := f.tasks.GetByID(ctx, message.TaskID)
	require.NoError(t, getErr)
	assert.Equal(t, analysis.TaskStatusPending, task.Status)
	assert.Equal(t, 1, task.AttemptCount)

	// Candidate untouched until the retry decides the outcome.
	cand, getErr := f.candidates.GetByID(ctx, f.accountID, c.ID)
	require.NoError(t, getErr)
	assert.Equal(t, candidate.AnalysisDispatched, cand.Status)

	// Replay the delayed message: second attempt succeeds.
	_, moveErr := f.queue.MoveDelayedToReady(ctx)
	require.NoError(t, moveErr)
	data, deqErr := f.queue.Dequeue(ctx, time.Second)
	require.NoError(t, deqErr)
	require.NotNil(t, data)

	var retried analysis.TaskMessage
	require.NoError(t, json.Unmarshal(data, &retried))
	require.NoError(t, f.worker.ProcessTask(ctx, &retried))

	cand, getErr = f.candidates.GetByID(ctx, f.accountID, c.ID)
	require.NoError(t, getErr)
	assert.Equal(t, candidate.AnalysisCompleted, cand.Status)
}

func TestExhaustedRetriesFailCandidate(t *testing.T) {
	f := newWorkerFixture(t, &screeningtest.FakeAnalyzer{Err: errors.New("model permanently down")})
	ctx := context.Background()

	c, message := f.seedTask(t)
	message.AttemptCount = 2 // Next failure is the final attempt

	err := f.worker.ProcessTask(ctx, message)
	require.Error(t, err)

	task, getErr := f.tasks.GetByID(ctx, message.TaskID)
	require.NoError(t, getErr)
	assert.Equal(t, analysis.TaskStatusFailed, task.Status)

	cand, getErr := f.candidates.GetByID(ctx, f.accountID, c.ID)
	require.NoError(t, getErr)
	assert.Equal(t, candidate.AnalysisFailed, cand.Status)
	assert.True(t, cand.CanDispatch())
}

func TestFailureEventPublished(t *testing.T) {
	f := newWorkerFixture(t, &screeningtest.FakeAnalyzer{Err: errors.New("model permanently down")})
	ctx := context.Background()

	sub, err := f.pubsub.Subscribe(ctx, f.jobID)
	require.NoError(t, err)
	defer sub.Close()

	_, message := f.seedTask(t)
	message.AttemptCount = 2

	require.Error(t, f.worker.ProcessTask(ctx, message))

	select {
	case event := <-sub.Events():
		assert.Equal(t, realtime.EventAnalysisFailed, event.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no failure event within the delivery window")
	}
}
