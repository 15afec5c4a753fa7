package candidatesrv

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/talentsift/sift/pkg/errx"
	"github.com/talentsift/sift/pkg/fsx"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/pkg/logx"
	"github.com/talentsift/sift/screening/candidate"
)

// SignedURLTTL bounds how long a CV download link stays valid.
const SignedURLTTL = 15 * time.Minute

// CandidateService provides business operations for candidates
type CandidateService struct {
	repo    candidate.Repository
	storage fsx.FileSystem
}

// NewCandidateService creates a new instance of the candidate service
func NewCandidateService(repo candidate.Repository, storage fsx.FileSystem) *CandidateService {
	return &CandidateService{
		repo:    repo,
		storage: storage,
	}
}

// CreateFromUpload inserts a freshly uploaded candidate in PENDING
// status with a filename-derived name and a zero score.
func (s *CandidateService) CreateFromUpload(
	ctx context.Context,
	accountID kernel.AccountID,
	jobID kernel.JobID,
	name string,
	cvText string,
	storagePath kernel.StoragePath,
) (*candidate.Candidate, error) {
	now := time.Now()
	c := &candidate.Candidate{
		ID:          kernel.NewCandidateID(uuid.NewString()),
		AccountID:   accountID,
		JobID:       jobID,
		Name:        name,
		CVText:      cvText,
		StoragePath: storagePath,
		CVRate:      0,
		Status:      candidate.AnalysisPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, errx.Wrap(err, "failed to create candidate", errx.TypeInternal)
	}

	return c, nil
}

// GetByID retrieves a candidate owned by the account
func (s *CandidateService) GetByID(ctx context.Context, accountID kernel.AccountID, id kernel.CandidateID) (*candidate.Candidate, error) {
	return s.repo.GetByID(ctx, accountID, id)
}

// ListByJob retrieves candidates for one job
func (s *CandidateService) ListByJob(
	ctx context.Context,
	accountID kernel.AccountID,
	jobID kernel.JobID,
	opts kernel.PaginationOptions,
) (*kernel.Paginated[candidate.Candidate], error) {
	return s.repo.ListByJob(ctx, accountID, jobID, opts.Normalize())
}

// Update applies user-editable field changes
func (s *CandidateService) Update(
	ctx context.Context,
	accountID kernel.AccountID,
	id kernel.CandidateID,
	req candidate.UpdateRequest,
) (*candidate.Candidate, error) {
	c, err := s.repo.GetByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Email != nil {
		c.Email = kernel.Email(*req.Email)
	}
	if req.Phone != nil {
		c.Phone = *req.Phone
	}
	if req.Unlocked != nil {
		c.Unlocked = *req.Unlocked
	}
	if req.Favorite != nil {
		c.Favorite = *req.Favorite
	}
	c.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, accountID, c); err != nil {
		return nil, errx.Wrap(err, "failed to update candidate", errx.TypeInternal)
	}

	return c, nil
}

// ApplyAnalysisResult validates and persists the analysis outcome
func (s *CandidateService) ApplyAnalysisResult(
	ctx context.Context,
	accountID kernel.AccountID,
	id kernel.CandidateID,
	result candidate.AnalysisResult,
) (*candidate.Candidate, error) {
	if result.CVRate < 0 || result.CVRate > 100 {
		return nil, candidate.ErrInvalidRating().WithDetail("cv_rate", result.CVRate)
	}

	c, err := s.repo.GetByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	c.ApplyAnalysisResult(result)

	if err := s.repo.ApplyAnalysis(ctx, accountID, c); err != nil {
		return nil, errx.Wrap(err, "failed to persist analysis result", errx.TypeInternal)
	}

	return c, nil
}

// SetStatus transitions the candidate's analysis status
func (s *CandidateService) SetStatus(
	ctx context.Context,
	accountID kernel.AccountID,
	id kernel.CandidateID,
	status candidate.AnalysisStatus,
) error {
	return s.repo.SetStatus(ctx, accountID, id, status)
}

// Delete removes candidates and their stored CV files. Credits already
// spent on these candidates stay spent.
func (s *CandidateService) Delete(ctx context.Context, accountID kernel.AccountID, ids []kernel.CandidateID) (int, error) {
	if len(ids) == 0 {
		return 0, candidate.ErrEmptyBatch()
	}

	// Collect storage paths before the rows disappear. Candidates the
	// account does not own come back as not-found and are skipped.
	var paths []kernel.StoragePath
	for _, id := range ids {
		c, err := s.repo.GetByID(ctx, accountID, id)
		if err != nil {
			continue
		}
		if !c.StoragePath.IsEmpty() {
			paths = append(paths, c.StoragePath)
		}
	}

	deleted, err := s.repo.Delete(ctx, accountID, ids)
	if err != nil {
		return 0, errx.Wrap(err, "failed to delete candidates", errx.TypeInternal)
	}

	// Blob cleanup is best effort. An orphaned file is cheaper than a
	// failed delete.
	for _, path := range paths {
		if err := s.storage.DeleteFile(ctx, path.String()); err != nil {
			logx.Warnf("failed to delete CV file %s: %v", path, err)
		}
	}

	return deleted, nil
}

// SignedCVURL issues a short-lived download link for the raw CV file
func (s *CandidateService) SignedCVURL(ctx context.Context, accountID kernel.AccountID, id kernel.CandidateID) (*candidate.SignedURLResponse, error) {
	c, err := s.repo.GetByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if c.StoragePath.IsEmpty() {
		return nil, candidate.ErrCandidateNotFound().WithDetail("reason", "no stored CV file")
	}

	url, err := s.storage.PresignGetURL(ctx, c.StoragePath.String(), SignedURLTTL)
	if err != nil {
		return nil, errx.Wrap(err, "failed to sign CV url", errx.TypeInternal)
	}

	return &candidate.SignedURLResponse{
		URL:       url,
		ExpiresIn: int(SignedURLTTL.Seconds()),
	}, nil
}
