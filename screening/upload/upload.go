package upload

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talentsift/sift/pkg/kernel"
)

// ItemState represents where one file sits in the upload pipeline
type ItemState string

const (
	ItemQueued     ItemState = "QUEUED"     // Accepted, waiting for a worker slot
	ItemExtracting ItemState = "EXTRACTING" // PDF text extraction running
	ItemUploading  ItemState = "UPLOADING"  // Blob write to storage running
	ItemAnalyzing  ItemState = "ANALYZING"  // Candidate inserted, dispatch running
	ItemCompleted  ItemState = "COMPLETED"  // Done, possibly without a dispatched analysis
	ItemFailed     ItemState = "FAILED"     // Gave up on this file
	ItemCancelled  ItemState = "CANCELLED"  // User cancelled before processing started
)

// IsTerminal checks if the state is final
func (s ItemState) IsTerminal() bool {
	return s == ItemCompleted || s == ItemFailed || s == ItemCancelled
}

// validTransitions is the item state machine. Failure is reachable from
// every non-terminal state; cancellation only from the queue.
var validTransitions = map[ItemState][]ItemState{
	ItemQueued:     {ItemExtracting, ItemFailed, ItemCancelled},
	ItemExtracting: {ItemUploading, ItemFailed},
	ItemUploading:  {ItemAnalyzing, ItemFailed},
	ItemAnalyzing:  {ItemCompleted, ItemFailed},
}

func canTransition(from, to ItemState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Item tracks one file through the batch
type Item struct {
	ID          string             `json:"id"`
	Filename    string             `json:"filename"`
	State       ItemState          `json:"state"`
	CandidateID kernel.CandidateID `json:"candidate_id,omitempty"`
	Dispatched  bool               `json:"dispatched"`
	Error       string             `json:"error,omitempty"`
}

// Batch is one upload of N files for one job. It lives in memory for
// the duration of the processing plus a retention window; the durable
// outcome is the candidate rows.
type Batch struct {
	ID        kernel.BatchID   `json:"id"`
	AccountID kernel.AccountID `json:"account_id"`
	JobID     kernel.JobID     `json:"job_id"`
	CreatedAt time.Time        `json:"created_at"`

	mu    sync.Mutex
	items []*Item
	wg    sync.WaitGroup
}

// NewBatch creates a batch with every file queued
func NewBatch(id kernel.BatchID, accountID kernel.AccountID, jobID kernel.JobID, filenames []string) *Batch {
	items := make([]*Item, len(filenames))
	for i, name := range filenames {
		items[i] = &Item{
			ID:       uuid.NewString(),
			Filename: name,
			State:    ItemQueued,
		}
	}
	b := &Batch{
		ID:        id,
		AccountID: accountID,
		JobID:     jobID,
		CreatedAt: time.Now(),
		items:     items,
	}
	b.wg.Add(len(items))
	return b
}

// Transition moves an item to the next state if the state machine
// allows it. It reports whether the transition happened.
func (b *Batch) Transition(itemID string, to ItemState) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range b.items {
		if item.ID == itemID {
			if !canTransition(item.State, to) {
				return false
			}
			item.State = to
			return true
		}
	}
	return false
}

// Fail marks an item failed with a reason, from any non-terminal state
func (b *Batch) Fail(itemID string, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range b.items {
		if item.ID == itemID && !item.State.IsTerminal() {
			item.State = ItemFailed
			item.Error = reason
			return
		}
	}
}

// Complete marks an item completed and records its candidate
func (b *Batch) Complete(itemID string, candidateID kernel.CandidateID, dispatched bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range b.items {
		if item.ID == itemID {
			item.State = ItemCompleted
			item.CandidateID = candidateID
			item.Dispatched = dispatched
			return
		}
	}
}

// Cancel cancels a queued item. Items already being processed cannot be
// cancelled.
func (b *Batch) Cancel(itemID string) bool {
	return b.Transition(itemID, ItemCancelled)
}

// SetCandidate records the inserted candidate on an item
func (b *Batch) SetCandidate(itemID string, candidateID kernel.CandidateID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range b.items {
		if item.ID == itemID {
			item.CandidateID = candidateID
			return
		}
	}
}

// Items returns a snapshot of the batch items
func (b *Batch) Items() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := make([]Item, len(b.items))
	for i, item := range b.items {
		items[i] = *item
	}
	return items
}

// Done signals one item finished processing
func (b *Batch) Done() {
	b.wg.Done()
}

// Wait blocks until every item reached a terminal state
func (b *Batch) Wait() {
	b.wg.Wait()
}

// IsFinished checks whether every item is terminal
func (b *Batch) IsFinished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range b.items {
		if !item.State.IsTerminal() {
			return false
		}
	}
	return true
}
