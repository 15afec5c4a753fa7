package upload

import "github.com/talentsift/sift/pkg/kernel"

// File is one uploaded CV ready for processing
type File struct {
	Filename string
	Data     []byte
}

// BatchResponse is the API view of a batch
type BatchResponse struct {
	ID       kernel.BatchID `json:"id"`
	JobID    kernel.JobID   `json:"job_id"`
	Items    []Item         `json:"items"`
	Finished bool           `json:"finished"`
}

// NewBatchResponse snapshots a batch for the API
func NewBatchResponse(b *Batch) *BatchResponse {
	return &BatchResponse{
		ID:       b.ID,
		JobID:    b.JobID,
		Items:    b.Items(),
		Finished: b.IsFinished(),
	}
}
