package candidate

import (
	"context"

	"github.com/talentsift/sift/pkg/kernel"
)

// Repository defines persistence operations for candidates. Every
// operation takes the owning account id and must refuse to touch rows
// belonging to a different account.
type Repository interface {
	// Create inserts a new candidate
	Create(ctx context.Context, c *Candidate) error

	// GetByID retrieves a candidate owned by the account
	GetByID(ctx context.Context, accountID kernel.AccountID, id kernel.CandidateID) (*Candidate, error)

	// Update persists user-editable fields
	Update(ctx context.Context, accountID kernel.AccountID, c *Candidate) error

	// ApplyAnalysis persists the analysis outcome fields
	ApplyAnalysis(ctx context.Context, accountID kernel.AccountID, c *Candidate) error

	// SetStatus transitions the analysis status
	SetStatus(ctx context.Context, accountID kernel.AccountID, id kernel.CandidateID, status AnalysisStatus) error

	// Delete removes candidates by id, skipping ids the account does
	// not own. It returns the number of rows actually deleted.
	Delete(ctx context.Context, accountID kernel.AccountID, ids []kernel.CandidateID) (int, error)

	// ListByJob retrieves candidates for a job with pagination
	ListByJob(ctx context.Context, accountID kernel.AccountID, jobID kernel.JobID, opts kernel.PaginationOptions) (*kernel.Paginated[Candidate], error)
}
