// Package screeningtest provides in-memory fakes for exercising the
// screening pipeline without Postgres, Redis or S3.
package screeningtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/analysis"
	"github.com/talentsift/sift/screening/billing"
	"github.com/talentsift/sift/screening/candidate"
	"github.com/talentsift/sift/screening/job"
	"github.com/talentsift/sift/screening/realtime"
)

// ============================================================================
// Billing
// ============================================================================

// MemoryAccountRepo is a mutex-guarded in-memory billing.Repository
type MemoryAccountRepo struct {
	mu       sync.Mutex
	accounts map[kernel.AccountID]*billing.Account
}

func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{accounts: make(map[kernel.AccountID]*billing.Account)}
}

func (r *MemoryAccountRepo) Create(_ context.Context, account *billing.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.ID]; ok {
		return billing.ErrAccountAlreadyExists()
	}
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

func (r *MemoryAccountRepo) GetByID(_ context.Context, id kernel.AccountID) (*billing.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, billing.ErrAccountNotFound()
	}
	cp := *account
	return &cp, nil
}

func (r *MemoryAccountRepo) DebitIfUnder(_ context.Context, id kernel.AccountID, limit int) (int, error) {
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

func (r *MemoryAccountRepo) Refund(_ context.Context, id kernel.AccountID) error {
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

func (r *MemoryAccountRepo) ResetUsage(_ context.Context, id kernel.AccountID) error {
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

func (r *MemoryAccountRepo) UpdatePlan(_ context.Context, id kernel.AccountID, plan billing.PlanTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return billing.ErrAccountNotFound()
	}
	account.Plan = plan
	return nil
}

func (r *MemoryAccountRepo) SetPaymentWarning(_ context.Context, id kernel.AccountID, warning bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return billing.ErrAccountNotFound()
	}
	account.PaymentWarning = warning
	return nil
}

// ============================================================================
// Candidates
// ============================================================================

// MemoryCandidateRepo is an in-memory candidate.Repository enforcing
// account scoping
type MemoryCandidateRepo struct {
	mu         sync.Mutex
	candidates map[kernel.CandidateID]*candidate.Candidate
}

func NewMemoryCandidateRepo() *MemoryCandidateRepo {
	return &MemoryCandidateRepo{candidates: make(map[kernel.CandidateID]*candidate.Candidate)}
}

func (r *MemoryCandidateRepo) Create(_ context.Context, c *candidate.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.candidates[c.ID]; ok {
		return candidate.ErrAlreadyExists()
	}
	cp := *c
	r.candidates[c.ID] = &cp
	return nil
}

func (r *MemoryCandidateRepo) GetByID(_ context.Context, accountID kernel.AccountID, id kernel.CandidateID) (*candidate.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok || c.AccountID != accountID {
		return nil, candidate.ErrCandidateNotFound()
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryCandidateRepo) Update(_ context.Context, accountID kernel.AccountID, c *candidate.Candidate) error {
	return r.store(accountID, c)
}

func (r *MemoryCandidateRepo) ApplyAnalysis(_ context.Context, accountID kernel.AccountID, c *candidate.Candidate) error {
	return r.store(accountID, c)
}

func (r *MemoryCandidateRepo) store(accountID kernel.AccountID, c *candidate.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.candidates[c.ID]
	if !ok || existing.AccountID != accountID {
		return candidate.ErrCandidateNotFound()
	}
	cp := *c
	r.candidates[c.ID] = &cp
	return nil
}

func (r *MemoryCandidateRepo) SetStatus(_ context.Context, accountID kernel.AccountID, id kernel.CandidateID, status candidate.AnalysisStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok || c.AccountID != accountID {
		return candidate.ErrCandidateNotFound()
	}
	c.Status = status
	return nil
}

func (r *MemoryCandidateRepo) Delete(_ context.Context, accountID kernel.AccountID, ids []kernel.CandidateID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if c, ok := r.candidates[id]; ok && c.AccountID == accountID {
			delete(r.candidates, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *MemoryCandidateRepo) ListByJob(_ context.Context, accountID kernel.AccountID, jobID kernel.JobID, opts kernel.PaginationOptions) (*kernel.Paginated[candidate.Candidate], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []candidate.Candidate
	for _, c := range r.candidates {
		if c.AccountID == accountID && c.JobID == jobID {
			items = append(items, *c)
		}
	}
	return kernel.NewPaginated(items, opts, len(items)), nil
}

// ============================================================================
// Jobs
// ============================================================================

// MemoryJobRepo is an in-memory job.Repository
type MemoryJobRepo struct {
	mu   sync.Mutex
	jobs map[kernel.JobID]*job.Job
}

func NewMemoryJobRepo() *MemoryJobRepo {
	return &MemoryJobRepo{jobs: make(map[kernel.JobID]*job.Job)}
}

func (r *MemoryJobRepo) Create(_ context.Context, j *job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.ID]; ok {
		return job.ErrAlreadyExists()
	}
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func (r *MemoryJobRepo) GetByID(_ context.Context, accountID kernel.AccountID, id kernel.JobID) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.AccountID != accountID {
		return nil, job.ErrJobNotFound()
	}
	cp := *j
	return &cp, nil
}

func (r *MemoryJobRepo) Update(_ context.Context, accountID kernel.AccountID, j *job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.jobs[j.ID]
	if !ok || existing.AccountID != accountID {
		return job.ErrJobNotFound()
	}
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func (r *MemoryJobRepo) Delete(_ context.Context, accountID kernel.AccountID, id kernel.JobID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.AccountID != accountID {
		return job.ErrJobNotFound()
	}
	delete(r.jobs, id)
	return nil
}

func (r *MemoryJobRepo) List(_ context.Context, accountID kernel.AccountID, opts kernel.PaginationOptions) (*kernel.Paginated[job.Job], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []job.Job
	for _, j := range r.jobs {
		if j.AccountID == accountID {
			items = append(items, *j)
		}
	}
	return kernel.NewPaginated(items, opts, len(items)), nil
}

// ============================================================================
// Analysis tasks and queue
// ============================================================================

// MemoryTaskRepo is an in-memory analysis.TaskRepository. It enforces
// the one-active-task-per-candidate guard the SQL adapter gets from its
// partial unique index.
type MemoryTaskRepo struct {
	mu    sync.Mutex
	tasks map[kernel.TaskID]*analysis.Task
}

func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{tasks: make(map[kernel.TaskID]*analysis.Task)}
}

func (r *MemoryTaskRepo) CreateIfAbsent(_ context.Context, task *analysis.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tasks {
		if existing.CandidateID == task.CandidateID && !existing.IsTerminal() {
			return analysis.ErrAlreadyInFlight()
		}
	}
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *MemoryTaskRepo) GetByID(_ context.Context, id kernel.TaskID) (*analysis.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, analysis.ErrTaskNotFound()
	}
	cp := *task
	return &cp, nil
}

func (r *MemoryTaskRepo) Delete(_ context.Context, id kernel.TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
	return nil
}

func (r *MemoryTaskRepo) MarkProcessing(_ context.Context, id kernel.TaskID) error {
	return r.setStatus(id, analysis.TaskStatusProcessing, "")
}

func (r *MemoryTaskRepo) MarkCompleted(_ context.Context, id kernel.TaskID) error {
	return r.setStatus(id, analysis.TaskStatusCompleted, "")
}

func (r *MemoryTaskRepo) MarkFailed(_ context.Context, id kernel.TaskID, reason string) error {
	return r.setStatus(id, analysis.TaskStatusFailed, reason)
}

func (r *MemoryTaskRepo) setStatus(id kernel.TaskID, status analysis.TaskStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return analysis.ErrTaskNotFound()
	}
	task.Status = status
	if reason != "" {
		task.ErrorMessage = reason
	}
	task.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryTaskRepo) UpdateForRetry(_ context.Context, task *analysis.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tasks[task.ID]
	if !ok {
		return analysis.ErrTaskNotFound()
	}
	existing.Status = analysis.TaskStatusPending
	existing.AttemptCount = task.AttemptCount
	existing.ErrorMessage = task.ErrorMessage
	existing.NextRetryAt = task.NextRetryAt
	existing.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryTaskRepo) FindStuck(_ context.Context, threshold time.Duration) ([]analysis.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-threshold)
	var stuck []analysis.Task
	for _, task := range r.tasks {
		if !task.IsTerminal() && task.UpdatedAt.Before(cutoff) {
			stuck = append(stuck, *task)
		}
	}
	return stuck, nil
}

// Touch backdates a task's UpdatedAt. Tests use it to age a task past
// the stuck threshold.
func (r *MemoryTaskRepo) Touch(id kernel.TaskID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task, ok := r.tasks[id]; ok {
		task.UpdatedAt = at
	}
}

// All returns a snapshot of every task
func (r *MemoryTaskRepo) All() []analysis.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := make([]analysis.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		tasks = append(tasks, *task)
	}
	return tasks
}

// MemoryTaskQueue is an in-memory analysis.TaskQueue
type MemoryTaskQueue struct {
	mu         sync.Mutex
	ready      [][]byte
	delayed    [][]byte
	EnqueueErr error
}

func NewMemoryTaskQueue() *MemoryTaskQueue {
	return &MemoryTaskQueue{}
}

func (q *MemoryTaskQueue) Enqueue(_ context.Context, _ kernel.TaskID, payload any) error {
	if q.EnqueueErr != nil {
		return q.EnqueueErr
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ready = append(q.ready, data)
	return nil
}

func (q *MemoryTaskQueue) Dequeue(_ context.Context, _ time.Duration) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		return nil, nil
	}
	data := q.ready[0]
	q.ready = q.ready[1:]
	return data, nil
}

func (q *MemoryTaskQueue) EnqueueDelayed(_ context.Context, _ kernel.TaskID, payload any, _ time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, data)
	return nil
}

func (q *MemoryTaskQueue) MoveDelayedToReady(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	moved := len(q.delayed)
	q.ready = append(q.ready, q.delayed...)
	q.delayed = nil
	return moved, nil
}

func (q *MemoryTaskQueue) Size(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.ready)), nil
}

func (q *MemoryTaskQueue) DelayedSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.delayed)
}

func (q *MemoryTaskQueue) Ping(_ context.Context) error { return nil }

// ============================================================================
// Storage
// ============================================================================

// MemoryStorage is an in-memory fsx.FileSystem
type MemoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{files: make(map[string][]byte)}
}

func (s *MemoryStorage) ReadFile(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return data, nil
}

func (s *MemoryStorage) WriteFile(_ context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
	return nil
}

func (s *MemoryStorage) WriteFileStream(ctx context.Context, path string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return s.WriteFile(ctx, path, data)
}

func (s *MemoryStorage) DeleteFile(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

func (s *MemoryStorage) PresignGetURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "https://storage.test/" + path + "?signed=1", nil
}

func (s *MemoryStorage) Join(parts ...string) string {
	return strings.Join(parts, "/")
}

// FileCount returns how many objects are stored
func (s *MemoryStorage) FileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// ============================================================================
// Realtime
// ============================================================================

// MemoryPubSub is an in-memory realtime.Publisher and Subscriber
type MemoryPubSub struct {
	mu   sync.Mutex
	subs map[kernel.JobID][]chan realtime.Event
}

func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[kernel.JobID][]chan realtime.Event)}
}

func (p *MemoryPubSub) Publish(_ context.Context, event realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs[event.JobID] {
		select {
		case ch <- event:
		default: // Slow subscriber, drop rather than block, delivery is best effort
		}
	}
	return nil
}

func (p *MemoryPubSub) Subscribe(_ context.Context, jobID kernel.JobID) (realtime.Subscription, error) {
	ch := make(chan realtime.Event, 16)
	p.mu.Lock()
	p.subs[jobID] = append(p.subs[jobID], ch)
	p.mu.Unlock()
	return &memorySubscription{bus: p, jobID: jobID, ch: ch}, nil
}

type memorySubscription struct {
	bus   *MemoryPubSub
	jobID kernel.JobID
	ch    chan realtime.Event
	once  sync.Once
}

func (s *memorySubscription) Events() <-chan realtime.Event { return s.ch }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		subs := s.bus.subs[s.jobID]
		for i, ch := range subs {
			if ch == s.ch {
				s.bus.subs[s.jobID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		s.bus.mu.Unlock()
		close(s.ch)
	})
	return nil
}

// SubscriberCount reports the live subscriptions for a job
func (p *MemoryPubSub) SubscriberCount(jobID kernel.JobID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs[jobID])
}

// ============================================================================
// Analyzer
// ============================================================================

// FakeAnalyzer returns a canned result or error, optionally failing the
// first N calls
type FakeAnalyzer struct {
	mu        sync.Mutex
	Result    *candidate.AnalysisResult
	Err       error
	FailFirst int
	calls     int
}

func (a *FakeAnalyzer) Analyze(_ context.Context, req analysis.AnalysisRequest) (*candidate.AnalysisResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.Err != nil {
		return nil, a.Err
	}
	if a.calls <= a.FailFirst {
		return nil, fmt.Errorf("transient analyzer failure (call %d)", a.calls)
	}
	if a.Result != nil {
		cp := *a.Result
		return &cp, nil
	}
	return &candidate.AnalysisResult{
		CVRate: 70,
		Relevance: candidate.RelevanceAnalysis{
			MatchingSkills: []string{"go"},
			Summary:        "default fake result for " + req.CandidateID.String(),
		},
	}, nil
}

// Calls reports how many times Analyze ran
func (a *FakeAnalyzer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
