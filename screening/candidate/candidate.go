package candidate

import (
	"time"

	"github.com/talentsift/sift/pkg/kernel"
)

// AnalysisStatus represents where a candidate sits in the screening pipeline
type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "PENDING"    // Saved, no analysis dispatched (e.g. out of credits)
	AnalysisDispatched AnalysisStatus = "DISPATCHED" // Analysis in flight
	AnalysisCompleted  AnalysisStatus = "COMPLETED"  // Result written back
	AnalysisFailed     AnalysisStatus = "FAILED"     // Analysis gave up after retries or timed out
)

// RelevanceAnalysis is the structured fit assessment produced by the
// analysis worker.
type RelevanceAnalysis struct {
	MatchingSkills []string `json:"matching_skills"`
	MissingSkills  []string `json:"missing_skills"`
	Summary        string   `json:"summary"`
}

// ImprovementTip is one concrete suggestion for the candidate
type ImprovementTip struct {
	Category string `json:"category"`
	Tip      string `json:"tip"`
}

// Candidate is one CV submission against one job. Contact fields start
// as a guess from the filename and are overwritten when the analysis
// extracts the real ones.
type Candidate struct {
	ID              kernel.CandidateID `db:"id" json:"id"`
	AccountID       kernel.AccountID   `db:"account_id" json:"account_id"`
	JobID           kernel.JobID       `db:"job_id" json:"job_id"`
	Name            string             `db:"name" json:"name"`
	Email           kernel.Email       `db:"email" json:"email"`
	Phone           string             `db:"phone" json:"phone"`
	CVText          string             `db:"cv_text" json:"cv_text"`
	StoragePath     kernel.StoragePath `db:"storage_path" json:"storage_path"`
	CVRate          int                `db:"cv_rate" json:"cv_rate"`
	Status          AnalysisStatus     `db:"status" json:"status"`
	Relevance       *RelevanceAnalysis `db:"relevance_analysis" json:"relevance_analysis,omitempty"`
	ImprovementTips []ImprovementTip   `db:"improvement_tips" json:"improvement_tips,omitempty"`
	Unlocked        bool               `db:"unlocked" json:"unlocked"`
	Favorite        bool               `db:"favorite" json:"favorite"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}

// ============================================================================
// Domain Methods
// ============================================================================

// IsAnalyzed checks if the analysis result has been written back
func (c *Candidate) IsAnalyzed() bool {
	return c.Status == AnalysisCompleted
}

// CanDispatch checks if an analysis may be started for this candidate.
// Pending and failed candidates are retryable; in-flight and completed
// ones are not.
func (c *Candidate) CanDispatch() bool {
	return c.Status == AnalysisPending || c.Status == AnalysisFailed
}

// ApplyAnalysisResult writes the analysis outcome onto the candidate.
// Extracted contact fields replace the filename-derived placeholders
// only when the extractor actually found something.
func (c *Candidate) ApplyAnalysisResult(result AnalysisResult) {
	c.CVRate = result.CVRate
	c.Relevance = &result.Relevance
	c.ImprovementTips = result.ImprovementTips
	c.Status = AnalysisCompleted
	if result.Name != "" {
		c.Name = result.Name
	}
	if result.Email != "" {
		c.Email = kernel.Email(result.Email)
	}
	if result.Phone != "" {
		c.Phone = result.Phone
	}
	c.UpdatedAt = time.Now()
}
