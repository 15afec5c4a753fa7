package candidatesrv

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/candidate"
)

// memoryCandidateRepo is an in-memory candidate.Repository enforcing
// the same account scoping as the SQL adapter.
type memoryCandidateRepo struct {
	mu         sync.Mutex
	candidates map[kernel.CandidateID]*candidate.Candidate
}

func newMemoryCandidateRepo() *memoryCandidateRepo {
	return &memoryCandidateRepo{candidates: make(map[kernel.CandidateID]*candidate.Candidate)}
}

func (r *memoryCandidateRepo) Create(_ context.Context, c *candidate.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.candidates[c.ID]; ok {
		return candidate.ErrAlreadyExists()
	}
	cp := *c
	r.candidates[c.ID] = &cp
	return nil
}

func (r *memoryCandidateRepo) GetByID(_ context.Context, accountID kernel.AccountID, id kernel.CandidateID) (*candidate.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok || c.AccountID != accountID {
		return nil, candidate.ErrCandidateNotFound()
	}
	cp := *c
	return &cp, nil
}

func (r *memoryCandidateRepo) Update(_ context.Context, accountID kernel.AccountID, c *candidate.Candidate) error {
	return r.store(accountID, c)
}

func (r *memoryCandidateRepo) ApplyAnalysis(_ context.Context, accountID kernel.AccountID, c *candidate.Candidate) error {
	return r.store(accountID, c)
}

func (r *memoryCandidateRepo) store(accountID kernel.AccountID, c *candidate.Candidate) error {
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

func (r *memoryCandidateRepo) SetStatus(_ context.Context, accountID kernel.AccountID, id kernel.CandidateID, status candidate.AnalysisStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok || c.AccountID != accountID {
		return candidate.ErrCandidateNotFound()
	}
	c.Status = status
	return nil
}

func (r *memoryCandidateRepo) Delete(_ context.Context, accountID kernel.AccountID, ids []kernel.CandidateID) (int, error) {
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

func (r *memoryCandidateRepo) ListByJob(_ context.Context, accountID kernel.AccountID, jobID kernel.JobID, opts kernel.PaginationOptions) (*kernel.Paginated[candidate.Candidate], error) {
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

// memoryStorage is an in-memory fsx.FileSystem for tests
type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: make(map[string][]byte)}
}

func (s *memoryStorage) ReadFile(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return data, nil
}

func (s *memoryStorage) WriteFile(_ context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
	return nil
}

func (s *memoryStorage) WriteFileStream(ctx context.Context, path string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return s.WriteFile(ctx, path, data)
}

func (s *memoryStorage) DeleteFile(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

func (s *memoryStorage) PresignGetURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "https://storage.test/" + path + "?signed=1", nil
}

func (s *memoryStorage) Join(parts ...string) string {
	return strings.Join(parts, "/")
}

var (
	accountA = kernel.NewAccountID("account-a")
	accountB = kernel.NewAccountID("account-b")
	jobA     = kernel.NewJobID("job-a")
)

func newTestService() (*CandidateService, *memoryCandidateRepo, *memoryStorage) {
	repo := newMemoryCandidateRepo()
	storage := newMemoryStorage()
	return NewCandidateService(repo, storage), repo, storage
}

func TestCreateFromUploadStartsPending(t *testing.T) {
	svc, _, _ := newTestService()

	c, err := svc.CreateFromUpload(context.Background(), accountA, jobA, "jane doe", "cv text", "job-a/1_jane.pdf")
	require.NoError(t, err)

	assert.Equal(t, candidate.AnalysisPending, c.Status)
	assert.Equal(t, 0, c.CVRate)
	assert.Nil(t, c.Relevance)
	assert.True(t, c.CanDispatch())
}

func TestAccountCannotReadForeignCandidate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateFromUpload(ctx, accountA, jobA, "jane doe", "cv text", "job-a/1_jane.pdf")
	require.NoError(t, err)

	_, err = svc.GetByID(ctx, accountB, c.ID)
	assert.Error(t, err)

	_, err = svc.Update(ctx, accountB, c.ID, candidate.UpdateRequest{})
	assert.Error(t, err)
}

func TestAccountCannotDeleteForeignCandidate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateFromUpload(ctx, accountA, jobA, "jane doe", "cv text", "job-a/1_jane.pdf")
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, accountB, []kernel.CandidateID{c.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	// Still visible to the owner.
	_, err = svc.GetByID(ctx, accountA, c.ID)
	assert.NoError(t, err)
}

func TestDeleteRemovesRowAndFile(t *testing.T) {
	svc, _, storage := newTestService()
	ctx := context.Background()

	require.NoError(t, storage.WriteFile(ctx, "job-a/1_jane.pdf", []byte("%PDF")))
	c, err := svc.CreateFromUpload(ctx, accountA, jobA, "jane doe", "cv text", "job-a/1_jane.pdf")
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, accountA, []kernel.CandidateID{c.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	listed, err := svc.ListByJob(ctx, accountA, jobA, kernel.PaginationOptions{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Empty(t, listed.Items)

	_, err = storage.ReadFile(ctx, "job-a/1_jane.pdf")
	assert.Error(t, err)
}

func TestDeleteEmptyBatchRejected(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Delete(context.Background(), accountA, nil)
	assert.Error(t, err)
}

func TestApplyAnalysisResult(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateFromUpload(ctx, accountA, jobA, "jane_cv", "cv text", "job-a/1_jane.pdf")
	require.NoError(t, err)

	updated, err := svc.ApplyAnalysisResult(ctx, accountA, c.ID, candidate.AnalysisResult{
		CVRate: 82,
		Relevance: candidate.RelevanceAnalysis{
			MatchingSkills: []string{"go", "postgres"},
			MissingSkills:  []string{"kubernetes"},
			Summary:        "strong backend fit",
		},
		ImprovementTips: []candidate.ImprovementTip{{Category: "skills", Tip: "add k8s experience"}},
		Name:            "Jane Doe",
		Email:           "jane@doe.dev",
	})
	require.NoError(t, err)

	assert.Equal(t, 82, updated.CVRate)
	assert.Equal(t, candidate.AnalysisCompleted, updated.Status)
	assert.True(t, updated.IsAnalyzed())
	assert.False(t, updated.CanDispatch())
	// Extracted contacts replace the filename-derived placeholder.
	assert.Equal(t, "Jane Doe", updated.Name)
	assert.Equal(t, kernel.Email("jane@doe.dev"), updated.Email)
}

func TestApplyAnalysisResultRejectsOutOfRangeRate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateFromUpload(ctx, accountA, jobA, "jane doe", "cv text", "job-a/1_jane.pdf")
	require.NoError(t, err)

	_, err = svc.ApplyAnalysisResult(ctx, accountA, c.ID, candidate.AnalysisResult{CVRate: 101})
	assert.Error(t, err)

	_, err = svc.ApplyAnalysisResult(ctx, accountA, c.ID, candidate.AnalysisResult{CVRate: -1})
	assert.Error(t, err)
}

func TestSignedCVURL(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateFromUpload(ctx, accountA, jobA, "jane doe", "cv text", "job-a/1_jane.pdf")
	require.NoError(t, err)

	resp, err := svc.SignedCVURL(ctx, accountA, c.ID)
	require.NoError(t, err)
	assert.Contains(t, resp.URL, "job-a/1_jane.pdf")
	assert.Equal(t, int(SignedURLTTL.Seconds()), resp.ExpiresIn)

	_, err = svc.SignedCVURL(ctx, accountB, c.ID)
	assert.Error(t, err)
}
