package analysis

import (
	"github.com/talentsift/sift/pkg/kernel"
)

// AnalysisRequest is the input handed to the analyzer for one CV.
type AnalysisRequest struct {
	CandidateID    kernel.CandidateID    `json:"candidate_id"`
	JobID          kernel.JobID          `json:"job_id"`
	CVText         string                `json:"cv_text"`
	JobDescription kernel.JobDescription `json:"job_description"`
	JobTitle       kernel.JobTitle       `json:"job_title"`
}

// TaskMessage is the queue payload for one analysis attempt. It carries
// the full request so workers never need to re-read the CV text.
type TaskMessage struct {
	TaskID       kernel.TaskID    `json:"task_id"`
	AccountID    kernel.AccountID `json:"account_id"`
	Request      AnalysisRequest  `json:"request"`
	AttemptCount int              `json:"attempt_count"`
	MaxAttempts  int              `json:"max_attempts"`
}

// DispatchResult reports whether an analysis was actually started and,
// when it was not, why.
type DispatchResult struct {
	Dispatched bool   `json:"dispatched"`
	Reason     string `json:"reason,omitempty"`
	Used       int    `json:"credits_used,omitempty"`
	Remaining  int    `json:"credits_remaining,omitempty"`
}

// Dispatch outcome reasons.
const (
	ReasonDispatched      = "dispatched"
	ReasonCreditExhausted = "credit_exhausted"
	ReasonAlreadyInFlight = "already_in_flight"
	ReasonNotDispatchable = "not_dispatchable"
)

// ResumeScreeningRequest names the candidates to re-dispatch
type ResumeScreeningRequest struct {
	JobID        kernel.JobID         `json:"job_id"`
	CandidateIDs []kernel.CandidateID `json:"candidate_ids"`
}

// ResumeScreeningResponse summarizes a batch re-dispatch
type ResumeScreeningResponse struct {
	Dispatched int `json:"dispatched"`
	Skipped    int `json:"skipped"`
	Denied     int `json:"denied"`
}
