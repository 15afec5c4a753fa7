package job

import "github.com/talentsift/sift/pkg/kernel"

// CreateJobRequest carries the fields for a new job
type CreateJobRequest struct {
	Title       kernel.JobTitle       `json:"title"`
	Description kernel.JobDescription `json:"description"`
}

// UpdateJobRequest carries editable job fields. Nil means unchanged.
type UpdateJobRequest struct {
	Title       *kernel.JobTitle       `json:"title,omitempty"`
	Description *kernel.JobDescription `json:"description,omitempty"`
	Status      *JobStatus             `json:"status,omitempty"`
}

// GenerateQuestionsRequest asks for a question set of the given size
type GenerateQuestionsRequest struct {
	Count int `json:"count"`
}
