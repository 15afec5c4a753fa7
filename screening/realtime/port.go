package realtime

import (
	"context"

	"github.com/talentsift/sift/pkg/kernel"
)

// Publisher pushes change events to whoever is watching a job
type Publisher interface {
	// Publish delivers the event to current subscribers of its job.
	// Delivery is at-least-once and best-effort; there is no ordering
	// guarantee across candidates.
	Publish(ctx context.Context, event Event) error
}

// Subscription is one live event stream for a job
type Subscription interface {
	// Events yields incoming events until the subscription is closed
	Events() <-chan Event

	// Close releases the server-side subscription slot. It must be
	// called on client teardown.
	Close() error
}

// Subscriber opens per-job event streams
type Subscriber interface {
	Subscribe(ctx context.Context, jobID kernel.JobID) (Subscription, error)
}
