package realtime

import (
	"time"

	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/candidate"
)

// Event types pushed to subscribed clients.
const (
	EventCandidateUpdated = "candidate.updated"
	EventAnalysisFailed   = "analysis.failed"
)

// Event is one change notification for a job's candidate list. The
// payload is the full updated candidate row, so clients can replace
// their copy without a refetch.
type Event struct {
	Type      string               `json:"type"`
	JobID     kernel.JobID         `json:"job_id"`
	Candidate *candidate.Candidate `json:"candidate"`
	EmittedAt time.Time            `json:"emitted_at"`
}

// NewCandidateUpdated builds an update event for a candidate row
func NewCandidateUpdated(c *candidate.Candidate) Event {
	return Event{
		Type:      EventCandidateUpdated,
		JobID:     c.JobID,
		Candidate: c,
		EmittedAt: time.Now(),
	}
}

// NewAnalysisFailed builds a failure event for a candidate row
func NewAnalysisFailed(c *candidate.Candidate) Event {
	return Event{
		Type:      EventAnalysisFailed,
		JobID:     c.JobID,
		Candidate: c,
		EmittedAt: time.Now(),
	}
}
