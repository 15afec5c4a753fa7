package job

import (
	"context"

	"github.com/talentsift/sift/pkg/kernel"
)

// Repository defines persistence operations for jobs, scoped by the
// owning account
type Repository interface {
	// Create inserts a new job
	Create(ctx context.Context, j *Job) error

	// GetByID retrieves a job owned by the account
	GetByID(ctx context.Context, accountID kernel.AccountID, id kernel.JobID) (*Job, error)

	// Update persists job changes
	Update(ctx context.Context, accountID kernel.AccountID, j *Job) error

	// Delete removes a job and cascades to its candidates
	Delete(ctx context.Context, accountID kernel.AccountID, id kernel.JobID) error

	// List retrieves the account's jobs with pagination
	List(ctx context.Context, accountID kernel.AccountID, opts kernel.PaginationOptions) (*kernel.Paginated[Job], error)
}

// QuestionGenerator produces assessment questions for a role
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, title kernel.JobTitle, description kernel.JobDescription, count int) ([]AssessmentQuestion, error)
}
