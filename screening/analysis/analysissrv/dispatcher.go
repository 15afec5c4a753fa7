package analysissrv

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/talentsift/sift/pkg/config"
	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/pkg/logx"
	"github.com/talentsift/sift/pkg/metrics"
	"github.com/talentsift/sift/screening/analysis"
	"github.com/talentsift/sift/screening/billing/billingsrv"
	"github.com/talentsift/sift/screening/candidate"
	"github.com/talentsift/sift/screening/candidate/candidatesrv"
	"github.com/talentsift/sift/screening/job"
)

// DefaultMaxAttempts bounds how often one analysis is retried.
const DefaultMaxAttempts = 3

// JobReader provides the job fields the analyzer needs
type JobReader interface {
	GetByID(ctx context.Context, accountID kernel.AccountID, id kernel.JobID) (*job.Job, error)
}

// Dispatcher decides whether a candidate gets analyzed and starts the
// asynchronous analysis when it does.
type Dispatcher struct {
	tasks      analysis.TaskRepository
	queue      analysis.TaskQueue
	billing    *billingsrv.BillingService
	candidates *candidatesrv.CandidateService
	jobs       JobReader
	policy     string
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(
	tasks analysis.TaskRepository,
	queue analysis.TaskQueue,
	billing *billingsrv.BillingService,
	candidates *candidatesrv.CandidateService,
	jobs JobReader,
	policy string,
) *Dispatcher {
	return &Dispatcher{
		tasks:      tasks,
		queue:      queue,
		billing:    billing,
		candidates: candidates,
		jobs:       jobs,
		policy:     policy,
	}
}

// Dispatch runs the credit check and, when a credit is granted, queues
// the analysis for the given candidate.
//
// The order matters: the in-flight task guard is taken before the debit
// so a double dispatch cannot burn two credits, and a denied debit rolls
// the guard back. A denied debit is a normal outcome, the candidate just
// stays pending.
func (d *Dispatcher) Dispatch(ctx context.Context, accountID kernel.AccountID, cand *candidate.Candidate) (*analysis.DispatchResult, error) {
	if !cand.CanDispatch() {
		metrics.DispatchesTotal.WithLabelValues("not_dispatchable").Inc()
		return &analysis.DispatchResult{
			Dispatched: false,
			Reason:     analysis.ReasonNotDispatchable,
		}, nil
	}

	jobEntity, err := d.jobs.GetByID(ctx, accountID, cand.JobID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	task := &analysis.Task{
		ID:          kernel.NewTaskID(uuid.NewString()),
		CandidateID: cand.ID,
		AccountID:   accountID,
		JobID:       cand.JobID,
		Status:      analysis.TaskStatusPending,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := d.tasks.CreateIfAbsent(ctx, task); err != nil {
		if errors.Is(err, analysis.ErrAlreadyInFlight()) {
			metrics.DispatchesTotal.WithLabelValues("already_in_flight").Inc()
			logx.Debugf("dispatch skipped, analysis already in flight for candidate %s", cand.ID)
			return &analysis.DispatchResult{
				Dispatched: false,
				Reason:     analysis.ReasonAlreadyInFlight,
			}, nil
		}
		return nil, err
	}

	debit, err := d.billing.CheckAndDebit(ctx, accountID)
	if err != nil {
		// Roll back the in-flight guard so a later dispatch can retry.
		_ = d.tasks.Delete(ctx, task.ID)
		return nil, err
	}
	if !debit.Allowed {
		_ = d.tasks.Delete(ctx, task.ID)
		metrics.DispatchesTotal.WithLabelValues("credit_exhausted").Inc()
		return &analysis.DispatchResult{
			Dispatched: false,
			Reason:     analysis.ReasonCreditExhausted,
			Used:       debit.Used,
			Remaining:  debit.Remaining,
		}, nil
	}

	message := analysis.TaskMessage{
		TaskID:    task.ID,
		AccountID: accountID,
		Request: analysis.AnalysisRequest{
			CandidateID:    cand.ID,
			JobID:          cand.JobID,
			CVText:         cand.CVText,
			JobDescription: jobEntity.Description,
			JobTitle:       jobEntity.Title,
		},
		AttemptCount: 0,
		MaxAttempts:  task.MaxAttempts,
	}

	// The candidate is marked dispatched before the message hits the
	// queue. A worker may drain the queue and write the final status at
	// any moment after Enqueue returns, and that write must not be
	// overwritten here.
	prevStatus := cand.Status
	if err := d.candidates.SetStatus(ctx, accountID, cand.ID, candidate.AnalysisDispatched); err != nil {
		if d.policy == config.PolicyChargeOnSuccess {
			if refundErr := d.billing.Refund(ctx, accountID); refundErr != nil {
				logx.Errorf("failed to refund credit after dispatch failure for account %s: %v", accountID, refundErr)
			}
		}
		_ = d.tasks.Delete(ctx, task.ID)
		return nil, err
	}

	if err := d.queue.Enqueue(ctx, task.ID, message); err != nil {
		if d.policy == config.PolicyChargeOnSuccess {
			if refundErr := d.billing.Refund(ctx, accountID); refundErr != nil {
				logx.Errorf("failed to refund credit after enqueue failure for account %s: %v", accountID, refundErr)
			}
		}
		if revertErr := d.candidates.SetStatus(ctx, accountID, cand.ID, prevStatus); revertErr != nil {
			logx.Errorf("failed to revert candidate %s after enqueue failure: %v", cand.ID, revertErr)
		}
		_ = d.tasks.MarkFailed(ctx, task.ID, "enqueue failed")
		metrics.DispatchesTotal.WithLabelValues("enqueue_failed").Inc()
		return nil, analysis.ErrEnqueueFailed().
			WithDetail("candidate_id", cand.ID.String()).
			WithDetail("error", err.Error())
	}

	metrics.DispatchesTotal.WithLabelValues("dispatched").Inc()
	logx.Infof("analysis dispatched: candidate=%s task=%s credits=%d/%d",
		cand.ID, task.ID, debit.Used, debit.Limit)

	return &analysis.DispatchResult{
		Dispatched: true,
		Reason:     analysis.ReasonDispatched,
		Used:       debit.Used,
		Remaining:  debit.Remaining,
	}, nil
}

// DispatchByID loads the candidate and dispatches it
func (d *Dispatcher) DispatchByID(ctx context.Context, accountID kernel.AccountID, candidateID kernel.CandidateID) (*analysis.DispatchResult, error) {
	cand, err := d.candidates.GetByID(ctx, accountID, candidateID)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, accountID, cand)
}

// ResumeScreening re-dispatches a user-selected batch of pending or
// failed candidates. It stops early once credits run out, since every
// following dispatch would be denied too.
func (d *Dispatcher) ResumeScreening(ctx context.Context, accountID kernel.AccountID, req analysis.ResumeScreeningRequest) (*analysis.ResumeScreeningResponse, error) {
	resp := &analysis.ResumeScreeningResponse{}

	for _, id := range req.CandidateIDs {
		result, err := d.DispatchByID(ctx, accountID, id)
		if err != nil {
			logx.Warnf("resume screening: dispatch failed for candidate %s: %v", id, err)
			resp.Skipped++
			continue
		}

		switch {
		case result.Dispatched:
			resp.Dispatched++
		case result.Reason == analysis.ReasonCreditExhausted:
			resp.Denied += len(req.CandidateIDs) - resp.Dispatched - resp.Skipped
			return resp, nil
		default:
			resp.Skipped++
		}
	}

	return resp, nil
}
