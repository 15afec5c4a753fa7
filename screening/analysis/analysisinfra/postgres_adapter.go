package analysisinfra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/analysis"
)

// PostgresTaskRepository implements analysis.TaskRepository using
// PostgreSQL. Idempotent dispatch relies on a partial unique index:
//
//	CREATE UNIQUE INDEX analysis_tasks_active_candidate
//	ON analysis_tasks (candidate_id)
//	WHERE status IN ('PENDING', 'PROCESSING');
type PostgresTaskRepository struct {
	db *sqlx.DB
}

// NewPostgresTaskRepository creates a new PostgreSQL task repository
func NewPostgresTaskRepository(db *sqlx.DB) *PostgresTaskRepository {
	return &PostgresTaskRepository{
		db: db,
	}
}

// ============================================================================
// Database Model
// ============================================================================

type taskModel struct {
	ID           string     `db:"id"`
	CandidateID  string     `db:"candidate_id"`
	AccountID    string     `db:"account_id"`
	JobID        string     `db:"job_id"`
	Status       string     `db:"status"`
	AttemptCount int        `db:"attempt_count"`
	MaxAttempts  int        `db:"max_attempts"`
	ErrorMessage string     `db:"error_message"`
	NextRetryAt  *time.Time `db:"next_retry_at"`
	StartedAt    *time.Time `db:"started_at"`
	CompletedAt  *time.Time `db:"completed_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (m *taskModel) toEntity() *analysis.Task {
	return &analysis.Task{
		ID:           kernel.NewTaskID(m.ID),
		CandidateID:  kernel.NewCandidateID(m.CandidateID),
		AccountID:    kernel.NewAccountID(m.AccountID),
		JobID:        kernel.NewJobID(m.JobID),
		Status:       analysis.TaskStatus(m.Status),
		AttemptCount: m.AttemptCount,
		MaxAttempts:  m.MaxAttempts,
		ErrorMessage: m.ErrorMessage,
		NextRetryAt:  m.NextRetryAt,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func fromEntity(t *analysis.Task) *taskModel {
	return &taskModel{
		ID:           t.ID.String(),
		CandidateID:  t.CandidateID.String(),
		AccountID:    t.AccountID.String(),
		JobID:        t.JobID.String(),
		Status:       string(t.Status),
		AttemptCount: t.AttemptCount,
		MaxAttempts:  t.MaxAttempts,
		ErrorMessage: t.ErrorMessage,
		NextRetryAt:  t.NextRetryAt,
		StartedAt:    t.StartedAt,
		CompletedAt:  t.CompletedAt,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// ============================================================================
// Repository Implementation
// ============================================================================

// CreateIfAbsent inserts a task unless the candidate already has an
// active one
func (r *PostgresTaskRepository) CreateIfAbsent(ctx context.Context, task *analysis.Task) error {
	query := `
		INSERT INTO analysis_tasks (
			id, candidate_id, account_id, job_id, status,
			attempt_count, max_attempts, error_message,
			next_retry_at, started_at, completed_at, created_at, updated_at
		) VALUES (
			:id, :candidate_id, :account_id, :job_id, :status,
			:attempt_count, :max_attempts, :error_message,
			:next_retry_at, :started_at, :completed_at, :created_at, :updated_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, fromEntity(task))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return analysis.ErrAlreadyInFlight()
		}
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetByID retrieves a task
func (r *PostgresTaskRepository) GetByID(ctx context.Context, id kernel.TaskID) (*analysis.Task, error) {
	var model taskModel
	query := `SELECT * FROM analysis_tasks WHERE id = $1`

	err := r.db.GetContext(ctx, &model, query, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, analysis.ErrTaskNotFound()
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return model.toEntity(), nil
}

// Delete removes a task
func (r *PostgresTaskRepository) Delete(ctx context.Context, id kernel.TaskID) error {
	query := `DELETE FROM analysis_tasks WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id.String()); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}

// MarkProcessing transitions the task to PROCESSING
func (r *PostgresTaskRepository) MarkProcessing(ctx context.Context, id kernel.TaskID) error {
	query := `
		UPDATE analysis_tasks
		SET status = $2, started_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, string(analysis.TaskStatusProcessing))
}

// MarkCompleted transitions the task to COMPLETED
func (r *PostgresTaskRepository) MarkCompleted(ctx context.Context, id kernel.TaskID) error {
	query := `
		UPDATE analysis_tasks
		SET status = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, string(analysis.TaskStatusCompleted))
}

// MarkFailed transitions the task to FAILED with a reason
func (r *PostgresTaskRepository) MarkFailed(ctx context.Context, id kernel.TaskID, reason string) error {
	query := `
		UPDATE analysis_tasks
		SET status = $2, error_message = $3, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id.String(), string(analysis.TaskStatusFailed), reason)
	if err != nil {
		return fmt.Errorf("failed to mark task failed: %w", err)
	}
	return requireRow(result)
}

// UpdateForRetry persists the attempt count and retry schedule
func (r *PostgresTaskRepository) UpdateForRetry(ctx context.Context, task *analysis.Task) error {
	query := `
		UPDATE analysis_tasks
		SET status = $2, attempt_count = $3, error_message = $4,
		    next_retry_at = $5, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		task.ID.String(), string(analysis.TaskStatusPending),
		task.AttemptCount, task.ErrorMessage, task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task for retry: %w", err)
	}
	return requireRow(result)
}

// FindStuck returns non-terminal tasks untouched past the threshold.
// Tasks waiting on a scheduled retry are not stuck.
func (r *PostgresTaskRepository) FindStuck(ctx context.Context, threshold time.Duration) ([]analysis.Task, error) {
	var models []taskModel
	query := `
		SELECT * FROM analysis_tasks
		WHERE status IN ($1, $2)
		  AND updated_at < NOW() - ($3 * INTERVAL '1 second')
		  AND (next_retry_at IS NULL OR next_retry_at < NOW() - ($3 * INTERVAL '1 second'))
	`

	err := r.db.SelectContext(ctx, &models, query,
		string(analysis.TaskStatusPending),
		string(analysis.TaskStatusProcessing),
		int(threshold.Seconds()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find stuck tasks: %w", err)
	}

	tasks := make([]analysis.Task, 0, len(models))
	for i := range models {
		tasks = append(tasks, *models[i].toEntity())
	}

	return tasks, nil
}

func (r *PostgresTaskRepository) exec(ctx context.Context, query string, id kernel.TaskID, args ...any) error {
	params := append([]any{id.String()}, args...)
	result, err := r.db.ExecContext(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return analysis.ErrTaskNotFound()
	}
	return nil
}
