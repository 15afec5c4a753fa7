package uploadsrv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentsift/sift/pkg/config"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/analysis/analysissrv"
	"github.com/talentsift/sift/screening/billing/billingsrv"
	"github.com/talentsift/sift/screening/candidate/candidatesrv"
	"github.com/talentsift/sift/screening/job"
	"github.com/talentsift/sift/screening/screeningtest"
	"github.com/talentsift/sift/screening/upload"
)

// analysissrvDispatcher wires a real dispatcher over in-memory parts so
// upload tests exercise the actual credit and in-flight semantics.
func analysissrvDispatcher(
	billingSvc *billingsrv.BillingService,
	candidates *candidatesrv.CandidateService,
	jobs analysissrv.JobReader,
	queue *screeningtest.MemoryTaskQueue,
) upload.AnalysisDispatcher {
	return analysissrv.NewDispatcher(
		screeningtest.NewMemoryTaskRepo(), queue, billingSvc, candidates, jobs, config.PolicyChargeOnAttempt,
	)
}

// fakeExtractor returns canned text and tracks how many extractions
// run at the same time.
type fakeExtractor struct {
	mu            sync.Mutex
	running       int
	maxConcurrent int
	failFor       map[string]bool
	block         chan struct{}
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{failFor: make(map[string]bool)}
}

func (e *fakeExtractor) ExtractText(_ context.Context, data []byte) (string, error) {
	e.mu.Lock()
	e.running++
	if e.running > e.maxConcurrent {
		e.maxConcurrent = e.running
	}
	fail := e.failFor[string(data)]
	block := e.block
	e.mu.Unlock()

	if block != nil {
		<-block
	}

	e.mu.Lock()
	e.running--
	e.mu.Unlock()

	if fail {
		return "", errors.New("malformed pdf")
	}
	return "resume text: " + string(data), nil
}

type uploadFixture struct {
	service    *UploadService
	storage    *screeningtest.MemoryStorage
	candidates *screeningtest.MemoryCandidateRepo
	queue      *screeningtest.MemoryTaskQueue
	billing    *billingsrv.BillingService
	extractor  *fakeExtractor
	accountID  kernel.AccountID
	jobID      kernel.JobID
}

var testLimits = map[string]int{"free": 25, "starter": 100, "pro": 250, "business": 1000}

func newUploadFixture(t *testing.T, concurrency int) *uploadFixture {
	t.Helper()
	return newUploadFixtureRetention(t, concurrency, time.Hour)
}

func newUploadFixtureRetention(t *testing.T, concurrency int, retention time.Duration) *uploadFixture {
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

	storage := screeningtest.NewMemoryStorage()
	candidateRepo := screeningtest.NewMemoryCandidateRepo()
	candidateSvc := candidatesrv.NewCandidateService(candidateRepo, storage)

	queue := screeningtest.NewMemoryTaskQueue()
	dispatcher := analysissrvDispatcher(billingSvc, candidateSvc, jobs, queue)

	extractor := newFakeExtractor()
	service := NewUploadService(storage, candidateSvc, extractor, dispatcher, concurrency, 1<<20, retention)

	return &uploadFixture{
		service:    service,
		storage:    storage,
		candidates: candidateRepo,
		queue:      queue,
		billing:    billingSvc,
		extractor:  extractor,
		accountID:  account.ID,
		jobID:      jobID,
	}
}

func (f *uploadFixture) burnCredits(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		result, err := f.billing.CheckAndDebit(context.Background(), f.accountID)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}
}

func (f *uploadFixture) startAndWait(t *testing.T, files []upload.File) *upload.Batch {
	t.Helper()
	batch, err := f.service.StartBatch(context.Background(), f.accountID, f.jobID, files)
	require.NoError(t, err)
	batch.Wait()
	return batch
}

func pdfFiles(n int) []upload.File {
	files := make([]upload.File, n)
	for i := range files {
		files[i] = upload.File{
			Filename: fmt.Sprintf("candidate_%d.pdf", i),
			Data:     []byte(fmt.Sprintf("pdf-%d", i)),
		}
	}
	return files
}

func TestStartBatchProcessesEveryFile(t *testing.T) {
	f := newUploadFixture(t, 4)

	batch := f.startAndWait(t, pdfFiles(5))

	items := batch.Items()
	require.Len(t, items, 5)
	for _, item := range items {
		assert.Equal(t, upload.ItemCompleted, item.State)
		assert.True(t, item.Dispatched)
		assert.False(t, item.CandidateID.IsEmpty())
	}

	listed, err := f.candidates.ListByJob(context.Background(), f.accountID, f.jobID, kernel.PaginationOptions{Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Len(t, listed.Items, 5)

	size, err := f.queue.Size(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)
	assert.Equal(t, 5, f.storage.FileCount())
}

func TestStartBatchValidation(t *testing.T) {
	f := newUploadFixture(t, 2)
	ctx := context.Background()

	_, err := f.service.StartBatch(ctx, f.accountID, f.jobID, nil)
	assert.ErrorIs(t, err, upload.ErrEmptyBatch())

	_, err = f.service.StartBatch(ctx, f.accountID, f.jobID, []upload.File{
		{Filename: "resume.docx", Data: []byte("doc")},
	})
	assert.ErrorIs(t, err, upload.ErrNotPDF())

	_, err = f.service.StartBatch(ctx, f.accountID, f.jobID, []upload.File{
		{Filename: "huge.pdf", Data: make([]byte, 2<<20)},
	})
	assert.ErrorIs(t, err, upload.ErrFileTooLarge())
}

func TestUploadSurvivesCreditExhaustion(t *testing.T) {
	f := newUploadFixture(t, 1)
	f.burnCredits(t, testLimits["free"]-1)

	batch := f.startAndWait(t, pdfFiles(3))

	var dispatched, undispatched int
	for _, item := range batch.Items() {
		require.Equal(t, upload.ItemCompleted, item.State)
		require.False(t, item.CandidateID.IsEmpty())
		if item.Dispatched {
			dispatched++
		} else {
			undispatched++
		}
	}
	assert.Equal(t, 1, dispatched)
	assert.Equal(t, 2, undispatched)

	// Every file became a candidate even though only one analysis ran.
	listed, err := f.candidates.ListByJob(context.Background(), f.accountID, f.jobID, kernel.PaginationOptions{Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Len(t, listed.Items, 3)

	size, err := f.queue.Size(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)

	usage, err := f.billing.GetUsage(context.Background(), f.accountID)
	require.NoError(t, err)
	assert.Equal(t, testLimits["free"], usage.Used)
}

func TestFailingFileDoesNotTouchSiblings(t *testing.T) {
	f := newUploadFixture(t, 2)
	files := pdfFiles(3)
	f.extractor.failFor[string(files[1].Data)] = true

	batch := f.startAndWait(t, files)

	byName := make(map[string]upload.Item)
	for _, item := range batch.Items() {
		byName[item.Filename] = item
	}

	assert.Equal(t, upload.ItemCompleted, byName["candidate_0.pdf"].State)
	assert.Equal(t, upload.ItemCompleted, byName["candidate_2.pdf"].State)

	failed := byName["candidate_1.pdf"]
	assert.Equal(t, upload.ItemFailed, failed.State)
	assert.NotEmpty(t, failed.Error)
	assert.True(t, failed.CandidateID.IsEmpty())

	listed, err := f.candidates.ListByJob(context.Background(), f.accountID, f.jobID, kernel.PaginationOptions{Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Len(t, listed.Items, 2)
}

func TestProcessingIsBounded(t *testing.T) {
	f := newUploadFixture(t, 2)
	f.extractor.block = make(chan struct{})

	batch, err := f.service.StartBatch(context.Background(), f.accountID, f.jobID, pdfFiles(6))
	require.NoError(t, err)

	// Give the workers time to grab every slot they are allowed to.
	time.Sleep(50 * time.Millisecond)
	close(f.extractor.block)
	batch.Wait()

	f.extractor.mu.Lock()
	maxConcurrent := f.extractor.maxConcurrent
	f.extractor.mu.Unlock()
	assert.LessOrEqual(t, maxConcurrent, 2)
	assert.True(t, batch.IsFinished())
}

func TestCancelQueuedItem(t *testing.T) {
	f := newUploadFixture(t, 1)
	f.extractor.block = make(chan struct{})

	files := pdfFiles(3)
	batch, err := f.service.StartBatch(context.Background(), f.accountID, f.jobID, files)
	require.NoError(t, err)

	// One file occupies the single worker slot; the rest sit queued.
	time.Sleep(50 * time.Millisecond)

	var queuedID string
	for _, item := range batch.Items() {
		if item.State == upload.ItemQueued {
			queuedID = item.ID
			break
		}
	}
	require.NotEmpty(t, queuedID)
	require.NoError(t, f.service.CancelItem(f.accountID, batch.ID, queuedID))

	close(f.extractor.block)
	batch.Wait()

	var cancelled upload.Item
	for _, item := range batch.Items() {
		if item.ID == queuedID {
			cancelled = item
		}
	}
	assert.Equal(t, upload.ItemCancelled, cancelled.State)
	assert.True(t, cancelled.CandidateID.IsEmpty())

	// A started item cannot be cancelled anymore.
	for _, item := range batch.Items() {
		if item.ID != queuedID {
			err := f.service.CancelItem(f.accountID, batch.ID, item.ID)
			assert.ErrorIs(t, err, upload.ErrNotCancellable())
		}
	}

	listed, err := f.candidates.ListByJob(context.Background(), f.accountID, f.jobID, kernel.PaginationOptions{Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Len(t, listed.Items, 2)
}

func TestGetBatchIsAccountScoped(t *testing.T) {
	f := newUploadFixture(t, 1)
	batch := f.startAndWait(t, pdfFiles(1))

	got, err := f.service.GetBatch(f.accountID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, got.ID)

	_, err = f.service.GetBatch(kernel.NewAccountID(uuid.NewString()), batch.ID)
	assert.ErrorIs(t, err, upload.ErrBatchNotFound())

	_, err = f.service.GetBatch(f.accountID, kernel.NewBatchID(uuid.NewString()))
	assert.ErrorIs(t, err, upload.ErrBatchNotFound())
}

func TestFinishedBatchIsEvictedAfterRetention(t *testing.T) {
	f := newUploadFixtureRetention(t, 2, 20*time.Millisecond)

	batch := f.startAndWait(t, pdfFiles(2))
	require.True(t, batch.IsFinished())

	assert.Eventually(t, func() bool {
		_, err := f.service.GetBatch(f.accountID, batch.ID)
		return errors.Is(err, upload.ErrBatchNotFound())
	}, time.Second, 10*time.Millisecond)
}

func TestRunningBatchStaysPollable(t *testing.T) {
	f := newUploadFixtureRetention(t, 1, 20*time.Millisecond)
	f.extractor.block = make(chan struct{})

	batch, err := f.service.StartBatch(context.Background(), f.accountID, f.jobID, pdfFiles(2))
	require.NoError(t, err)

	// The retention clock only starts once the batch finishes.
	time.Sleep(100 * time.Millisecond)
	_, err = f.service.GetBatch(f.accountID, batch.ID)
	require.NoError(t, err)

	close(f.extractor.block)
	batch.Wait()
}

func TestCandidateNameFromFilename(t *testing.T) {
	assert.Equal(t, "jane doe", nameFromFilename("jane_doe.pdf"))
	assert.Equal(t, "John Smith CV", nameFromFilename("John-Smith-CV.pdf"))
	assert.Equal(t, "resume", nameFromFilename("resume.PDF"))
}
