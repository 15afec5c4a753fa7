package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/talentsift/sift/pkg/logx"
	"github.com/talentsift/sift/pkg/metrics"
	"github.com/talentsift/sift/screening/analysis"
	"github.com/talentsift/sift/screening/candidate"
	"github.com/talentsift/sift/screening/candidate/candidatesrv"
	"github.com/talentsift/sift/screening/realtime"
)

// AnalysisWorker consumes analysis tasks, runs the analyzer and writes
// results back to the candidate store.
type AnalysisWorker struct {
	queue      analysis.TaskQueue
	tasks      analysis.TaskRepository
	analyzer   analysis.Analyzer
	candidates *candidatesrv.CandidateService
	publisher  realtime.Publisher
	workers    int
}

// NewAnalysisWorker creates a new worker pool
func NewAnalysisWorker(
	queue analysis.TaskQueue,
	tasks analysis.TaskRepository,
	analyzer analysis.Analyzer,
	candidates *candidatesrv.CandidateService,
	publisher realtime.Publisher,
	workers int,
) *AnalysisWorker {
	return &AnalysisWorker{
		queue:      queue,
		tasks:      tasks,
		analyzer:   analyzer,
		candidates: candidates,
		publisher:  publisher,
		workers:    workers,
	}
}

// Start launches the worker pool and the delayed-task mover
func (w *AnalysisWorker) Start(ctx context.Context) {
	logx.Infof("starting %d analysis workers", w.workers)

	go w.moveDelayedTasks(ctx)

	for i := 0; i < w.workers; i++ {
		go w.processTasks(ctx, i)
	}
}

func (w *AnalysisWorker) processTasks(ctx context.Context, workerID int) {
	logx.Infof("analysis worker %d started", workerID)

	for {
		select {
		case <-ctx.Done():
			logx.Infof("analysis worker %d stopping", workerID)
			return
		default:
			data, err := w.queue.Dequeue(ctx, 5*time.Second)
			if err != nil {
				if ctx.Err() == nil {
					logx.Errorf("worker %d dequeue error: %v", workerID, err)
				}
				continue
			}

			// Nil data means the blocking wait timed out.
			if len(data) == 0 {
				continue
			}

			var message analysis.TaskMessage
			if err := json.Unmarshal(data, &message); err != nil {
				logx.Errorf("worker %d unmarshal error: %v (data: %s)", workerID, err, string(data))
				continue
			}

			logx.Infof("worker %d processing task %s (attempt %d/%d)",
				workerID, message.TaskID, message.AttemptCount+1, message.MaxAttempts)
			if err := w.ProcessTask(ctx, &message); err != nil {
				logx.Errorf("worker %d task %s failed: %v", workerID, message.TaskID, err)
			}
		}
	}
}

// ProcessTask runs one analysis attempt end to end
func (w *AnalysisWorker) ProcessTask(ctx context.Context, message *analysis.TaskMessage) error {
	start := time.Now()

	if err := w.tasks.MarkProcessing(ctx, message.TaskID); err != nil {
		// The task row is gone or already terminal, nothing to do.
		return err
	}

	result, err := w.analyzer.Analyze(ctx, message.Request)
	if err != nil {
		return w.handleTaskError(ctx, message, err)
	}

	updated, err := w.candidates.ApplyAnalysisResult(ctx, message.AccountID, message.Request.CandidateID, *result)
	if err != nil {
		return w.handleTaskError(ctx, message, err)
	}

	if err := w.tasks.MarkCompleted(ctx, message.TaskID); err != nil {
		// The result is already persisted, so only log.
		logx.Errorf("failed to mark task %s completed: %v", message.TaskID, err)
	}

	w.publish(ctx, realtime.NewCandidateUpdated(updated))

	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	logx.Infof("analysis completed: candidate=%s rate=%d", updated.ID, updated.CVRate)
	return nil
}

// handleTaskError retries with exponential backoff until attempts run
// out, then fails the task and flags the candidate for manual retry.
func (w *AnalysisWorker) handleTaskError(ctx context.Context, message *analysis.TaskMessage, cause error) error {
	message.AttemptCount++

	if message.AttemptCount < message.MaxAttempts {
		retryDelay := time.Duration(1<<uint(message.AttemptCount)) * time.Minute
		nextRetry := time.Now().Add(retryDelay)

		logx.Warnf("task %s failed, retrying at %s (attempt %d/%d): %v",
			message.TaskID, nextRetry.Format(time.RFC3339),
			message.AttemptCount, message.MaxAttempts, cause)

		if queueErr := w.queue.EnqueueDelayed(ctx, message.TaskID, message, retryDelay); queueErr != nil {
			logx.Errorf("failed to enqueue task %s for retry: %v", message.TaskID, queueErr)
			return w.failPermanently(ctx, message, cause)
		}

		task := &analysis.Task{
			ID:           message.TaskID,
			AttemptCount: message.AttemptCount,
			ErrorMessage: cause.Error(),
			NextRetryAt:  &nextRetry,
		}
		if err := w.tasks.UpdateForRetry(ctx, task); err != nil {
			logx.Errorf("failed to update task %s for retry: %v", message.TaskID, err)
		}

		return analysis.ErrAnalyzerFailed().
			WithDetail("task_id", message.TaskID.String()).
			WithDetail("will_retry", true).
			WithDetail("error", cause.Error())
	}

	return w.failPermanently(ctx, message, cause)
}

func (w *AnalysisWorker) failPermanently(ctx context.Context, message *analysis.TaskMessage, cause error) error {
	logx.Errorf("task %s permanently failed after %d attempts: %v",
		message.TaskID, message.AttemptCount, cause)

	if err := w.tasks.MarkFailed(ctx, message.TaskID, cause.Error()); err != nil {
		logx.Errorf("failed to mark task %s failed: %v", message.TaskID, err)
	}

	if err := w.candidates.SetStatus(ctx, message.AccountID, message.Request.CandidateID, candidate.AnalysisFailed); err != nil {
		logx.Errorf("failed to mark candidate %s failed: %v", message.Request.CandidateID, err)
	}

	if failed, err := w.candidates.GetByID(ctx, message.AccountID, message.Request.CandidateID); err == nil {
		w.publish(ctx, realtime.NewAnalysisFailed(failed))
	}

	return analysis.ErrMaxRetries().
		WithDetail("task_id", message.TaskID.String()).
		WithDetail("final_attempt", message.AttemptCount).
		WithDetail("error", cause.Error())
}

func (w *AnalysisWorker) publish(ctx context.Context, event realtime.Event) {
	if err := w.publisher.Publish(ctx, event); err != nil {
		logx.Warnf("failed to publish realtime event for job %s: %v", event.JobID, err)
	}
}

func (w *AnalysisWorker) moveDelayedTasks(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := w.queue.MoveDelayedToReady(ctx)
			if err != nil {
				logx.Errorf("failed to move delayed tasks: %v", err)
			} else if count > 0 {
				logx.Infof("moved %d delayed tasks to ready queue", count)
			}
		}
	}
}
