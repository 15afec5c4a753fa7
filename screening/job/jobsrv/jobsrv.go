package jobsrv

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/talentsift/sift/pkg/errx"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/pkg/logx"
	"github.com/talentsift/sift/screening/job"
)

// DefaultQuestionCount is used when the caller does not ask for a
// specific question set size.
const DefaultQuestionCount = 5

// JobService provides business operations for jobs
type JobService struct {
	repo      job.Repository
	generator job.QuestionGenerator
}

// NewJobService creates a new instance of the job service
func NewJobService(repo job.Repository, generator job.QuestionGenerator) *JobService {
	return &JobService{
		repo:      repo,
		generator: generator,
	}
}

// Create creates a new open job
func (s *JobService) Create(ctx context.Context, accountID kernel.AccountID, req job.CreateJobRequest) (*job.Job, error) {
	if req.Title == "" || req.Description == "" {
		return nil, job.ErrInvalidJob()
	}

	now := time.Now()
	j := &job.Job{
		ID:          kernel.NewJobID(uuid.NewString()),
		AccountID:   accountID,
		Title:       req.Title,
		Description: req.Description,
		Status:      job.JobStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, j); err != nil {
		return nil, errx.Wrap(err, "failed to create job", errx.TypeInternal)
	}

	return j, nil
}

// GetByID retrieves a job owned by the account
func (s *JobService) GetByID(ctx context.Context, accountID kernel.AccountID, id kernel.JobID) (*job.Job, error) {
	return s.repo.GetByID(ctx, accountID, id)
}

// List retrieves the account's jobs
func (s *JobService) List(ctx context.Context, accountID kernel.AccountID, opts kernel.PaginationOptions) (*kernel.Paginated[job.Job], error) {
	return s.repo.List(ctx, accountID, opts.Normalize())
}

// Update applies job field changes
func (s *JobService) Update(ctx context.Context, accountID kernel.AccountID, id kernel.JobID, req job.UpdateJobRequest) (*job.Job, error) {
	j, err := s.repo.GetByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		j.Title = *req.Title
	}
	if req.Description != nil {
		j.Description = *req.Description
	}
	if req.Status != nil {
		j.Status = *req.Status
	}
	j.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, accountID, j); err != nil {
		return nil, errx.Wrap(err, "failed to update job", errx.TypeInternal)
	}

	return j, nil
}

// Delete removes a job
func (s *JobService) Delete(ctx context.Context, accountID kernel.AccountID, id kernel.JobID) error {
	return s.repo.Delete(ctx, accountID, id)
}

// GenerateQuestions builds and persists an assessment question set for
// the role
func (s *JobService) GenerateQuestions(ctx context.Context, accountID kernel.AccountID, id kernel.JobID, count int) (*job.Job, error) {
	if count < 1 {
		count = DefaultQuestionCount
	}

	j, err := s.repo.GetByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	questions, err := s.generator.GenerateQuestions(ctx, j.Title, j.Description, count)
	if err != nil {
		return nil, job.ErrGeneration().WithDetail("error", err.Error())
	}

	j.Questions = questions
	j.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, accountID, j); err != nil {
		return nil, errx.Wrap(err, "failed to persist questions", errx.TypeInternal)
	}

	logx.Infof("generated %d assessment questions for job %s", len(questions), id)
	return j, nil
}
