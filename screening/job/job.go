package job

import (
	"time"

	"github.com/talentsift/sift/pkg/kernel"
)

// JobStatus represents the status of a job opening
type JobStatus string

const (
	JobStatusOpen   JobStatus = "OPEN"
	JobStatusClosed JobStatus = "CLOSED"
)

// AssessmentQuestion is one generated screening question for the role
type AssessmentQuestion struct {
	Question string `json:"question"`
	Category string `json:"category"`
}

// Job is one posted role owned by an account
type Job struct {
	ID          kernel.JobID          `db:"id" json:"id"`
	AccountID   kernel.AccountID      `db:"account_id" json:"account_id"`
	Title       kernel.JobTitle       `db:"title" json:"title"`
	Description kernel.JobDescription `db:"description" json:"description"`
	Status      JobStatus             `db:"status" json:"status"`
	Questions   []AssessmentQuestion  `db:"questions" json:"questions,omitempty"`
	CreatedAt   time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time             `db:"updated_at" json:"updated_at"`
}

// IsOpen checks if the job still accepts uploads
func (j *Job) IsOpen() bool {
	return j.Status == JobStatusOpen
}
