package analysis

import (
	"context"
	"time"

	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/candidate"
)

// TaskRepository defines persistence operations for analysis tasks
type TaskRepository interface {
	// CreateIfAbsent inserts the task unless the candidate already has
	// a non-terminal one, in which case it returns ErrAlreadyInFlight.
	CreateIfAbsent(ctx context.Context, task *Task) error

	// GetByID retrieves a task
	GetByID(ctx context.Context, id kernel.TaskID) (*Task, error)

	// Delete removes a task, used to roll back a dispatch that was
	// denied before anything was enqueued
	Delete(ctx context.Context, id kernel.TaskID) error

	// MarkProcessing transitions the task to PROCESSING
	MarkProcessing(ctx context.Context, id kernel.TaskID) error

	// MarkCompleted transitions the task to COMPLETED
	MarkCompleted(ctx context.Context, id kernel.TaskID) error

	// MarkFailed transitions the task to FAILED with a reason
	MarkFailed(ctx context.Context, id kernel.TaskID, reason string) error

	// UpdateForRetry persists attempt count and retry schedule, putting
	// the task back to PENDING
	UpdateForRetry(ctx context.Context, task *Task) error

	// FindStuck returns non-terminal tasks untouched for longer than
	// the threshold
	FindStuck(ctx context.Context, threshold time.Duration) ([]Task, error)
}

// TaskQueue defines the transport between dispatcher and workers
type TaskQueue interface {
	// Enqueue pushes a task message for immediate processing
	Enqueue(ctx context.Context, taskID kernel.TaskID, payload any) error

	// Dequeue blocks up to timeout for the next message. A nil slice
	// with nil error means the wait timed out.
	Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error)

	// EnqueueDelayed schedules a message for later delivery (retries)
	EnqueueDelayed(ctx context.Context, taskID kernel.TaskID, payload any, delay time.Duration) error

	// MoveDelayedToReady promotes due delayed messages to the main queue
	MoveDelayedToReady(ctx context.Context) (int, error)

	// Size returns the number of ready messages
	Size(ctx context.Context) (int64, error)

	// Ping checks the queue backend is reachable
	Ping(ctx context.Context) error
}

// Analyzer scores one CV against one job
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*candidate.AnalysisResult, error)
}
