package jobinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/job"
)

// PostgresJobRepository implements job.Repository using PostgreSQL
type PostgresJobRepository struct {
	db *sqlx.DB
}

// NewPostgresJobRepository creates a new PostgreSQL job repository
func NewPostgresJobRepository(db *sqlx.DB) *PostgresJobRepository {
	return &PostgresJobRepository{
		db: db,
	}
}

// ============================================================================
// Database Model
// ============================================================================

type jobModel struct {
	ID          string          `db:"id"`
	AccountID   string          `db:"account_id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	Status      string          `db:"status"`
	Questions   json.RawMessage `db:"questions"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (m *jobModel) toEntity() (*job.Job, error) {
	var questions []job.AssessmentQuestion
	if len(m.Questions) > 0 && string(m.Questions) != "null" {
		if err := json.Unmarshal(m.Questions, &questions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
		}
	}

	return &job.Job{
		ID:          kernel.NewJobID(m.ID),
		AccountID:   kernel.NewAccountID(m.AccountID),
		Title:       kernel.JobTitle(m.Title),
		Description: kernel.JobDescription(m.Description),
		Status:      job.JobStatus(m.Status),
		Questions:   questions,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func fromEntity(j *job.Job) (*jobModel, error) {
	var questions json.RawMessage
	if j.Questions != nil {
		data, err := json.Marshal(j.Questions)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal questions: %w", err)
		}
		questions = data
	}

	return &jobModel{
		ID:          j.ID.String(),
		AccountID:   j.AccountID.String(),
		Title:       string(j.Title),
		Description: string(j.Description),
		Status:      string(j.Status),
		Questions:   questions,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}, nil
}

// ============================================================================
// Repository Implementation
// ============================================================================

// Create creates a new job
func (r *PostgresJobRepository) Create(ctx context.Context, j *job.Job) error {
	model, err := fromEntity(j)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO jobs (
			id, account_id, title, description, status, questions,
			created_at, updated_at
		) VALUES (
			:id, :account_id, :title, :description, :status, :questions,
			:created_at, :updated_at
		)
	`

	_, err = r.db.NamedExecContext(ctx, query, model)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return job.ErrAlreadyExists()
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job scoped to the owning account
func (r *PostgresJobRepository) GetByID(ctx context.Context, accountID kernel.AccountID, id kernel.JobID) (*job.Job, error) {
	var model jobModel
	query := `SELECT * FROM jobs WHERE id = $1 AND account_id = $2`

	err := r.db.GetContext(ctx, &model, query, id.String(), accountID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, job.ErrJobNotFound()
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return model.toEntity()
}

// Update persists job changes
func (r *PostgresJobRepository) Update(ctx context.Context, accountID kernel.AccountID, j *job.Job) error {
	model, err := fromEntity(j)
	if err != nil {
		return err
	}

	query := `
		UPDATE jobs
		SET title = $3, description = $4, status = $5, questions = $6,
		    updated_at = $7
		WHERE id = $1 AND account_id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		model.ID, accountID.String(),
		model.Title, model.Description, model.Status, model.Questions, model.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return job.ErrJobNotFound()
	}

	return nil
}

// Delete removes a job. Candidate rows cascade via the foreign key.
func (r *PostgresJobRepository) Delete(ctx context.Context, accountID kernel.AccountID, id kernel.JobID) error {
	query := `DELETE FROM jobs WHERE id = $1 AND account_id = $2`

	result, err := r.db.ExecContext(ctx, query, id.String(), accountID.String())
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return job.ErrJobNotFound()
	}

	return nil
}

// List retrieves the account's jobs with pagination
func (r *PostgresJobRepository) List(ctx context.Context, accountID kernel.AccountID, opts kernel.PaginationOptions) (*kernel.Paginated[job.Job], error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM jobs WHERE account_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, accountID.String()); err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	var models []jobModel
	query := `
		SELECT * FROM jobs
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	err := r.db.SelectContext(ctx, &models, query, accountID.String(), opts.PageSize, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	items := make([]job.Job, 0, len(models))
	for i := range models {
		entity, err := models[i].toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, *entity)
	}

	return kernel.NewPaginated(items, opts, total), nil
}
