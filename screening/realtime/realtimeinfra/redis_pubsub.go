package realtimeinfra

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/pkg/logx"
	"github.com/talentsift/sift/screening/realtime"
)

const channelPrefix = "job_updates:"

// RedisPubSub implements realtime.Publisher and realtime.Subscriber on
// Redis pub/sub, one channel per job.
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub creates a new Redis-backed event bus
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client: client,
	}
}

func channelFor(jobID kernel.JobID) string {
	return channelPrefix + jobID.String()
}

// Publish delivers the event to current subscribers of its job
func (p *RedisPubSub) Publish(ctx context.Context, event realtime.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, channelFor(event.JobID), data).Err(); err != nil {
		return fmt.Errorf("publish event for job %s: %w", event.JobID, err)
	}

	return nil
}

// Subscribe opens an event stream for one job
func (p *RedisPubSub) Subscribe(ctx context.Context, jobID kernel.JobID) (realtime.Subscription, error) {
	pubsub := p.client.Subscribe(ctx, channelFor(jobID))

	// Force the subscription onto the wire before returning, so events
	// published right after Subscribe are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to job %s: %w", jobID, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan realtime.Event, 16),
	}
	go sub.pump(ctx)

	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan realtime.Event
}

func (s *redisSubscription) pump(ctx context.Context) {
	defer close(s.events)

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event realtime.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logx.Warnf("dropping malformed realtime event: %v", err)
				continue
			}

			select {
			case s.events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *redisSubscription) Events() <-chan realtime.Event {
	return s.events
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
