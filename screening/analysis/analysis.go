package analysis

import (
	"time"

	"github.com/talentsift/sift/pkg/kernel"
)

// TaskStatus represents the lifecycle of one analysis task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"    // Queued, not yet picked up
	TaskStatusProcessing TaskStatus = "PROCESSING" // A worker is on it
	TaskStatusCompleted  TaskStatus = "COMPLETED"  // Result written back
	TaskStatusFailed     TaskStatus = "FAILED"     // Gave up after retries or swept as stuck
)

// Task tracks one CV analysis through the queue. At most one
// non-terminal task may exist per candidate, which is what makes
// dispatch idempotent.
type Task struct {
	ID           kernel.TaskID      `db:"id" json:"id"`
	CandidateID  kernel.CandidateID `db:"candidate_id" json:"candidate_id"`
	AccountID    kernel.AccountID   `db:"account_id" json:"account_id"`
	JobID        kernel.JobID       `db:"job_id" json:"job_id"`
	Status       TaskStatus         `db:"status" json:"status"`
	AttemptCount int                `db:"attempt_count" json:"attempt_count"`
	MaxAttempts  int                `db:"max_attempts" json:"max_attempts"`
	ErrorMessage string             `db:"error_message" json:"error_message,omitempty"`
	NextRetryAt  *time.Time         `db:"next_retry_at" json:"next_retry_at,omitempty"`
	StartedAt    *time.Time         `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}

// IsTerminal checks if the task reached a final state
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// CanRetry checks if another attempt is allowed
func (t *Task) CanRetry() bool {
	return t.AttemptCount < t.MaxAttempts
}

// RetryDelay computes the exponential backoff for the next attempt,
// 2^attempt minutes.
func (t *Task) RetryDelay() time.Duration {
	return time.Duration(1<<uint(t.AttemptCount)) * time.Minute
}
