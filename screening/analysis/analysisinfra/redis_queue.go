package analysisinfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/analysis"
)

// RedisTaskQueue implements analysis.TaskQueue using a Redis list for
// ready tasks and a sorted set for delayed retries.
type RedisTaskQueue struct {
	client    *redis.Client
	queueName string
}

// NewRedisTaskQueue creates a new Redis-based task queue
func NewRedisTaskQueue(client *redis.Client, queueName string) analysis.TaskQueue {
	return &RedisTaskQueue{
		client:    client,
		queueName: queueName,
	}
}

// Enqueue adds a task to the queue
func (q *RedisTaskQueue) Enqueue(ctx context.Context, taskID kernel.TaskID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for task %s: %w", taskID, err)
	}

	if err := q.client.LPush(ctx, q.queueName, data).Err(); err != nil {
		return fmt.Errorf("enqueue task %s: %w", taskID, err)
	}

	return nil
}

// Dequeue gets a task from the queue (blocking with timeout)
func (q *RedisTaskQueue) Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		// redis.Nil is returned when the wait timed out
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue task: %w", err)
	}

	if len(result) < 2 {
		return nil, fmt.Errorf("invalid result from queue: expected 2 elements, got %d", len(result))
	}

	return []byte(result[1]), nil
}

// EnqueueDelayed schedules a task for later processing (retries)
func (q *RedisTaskQueue) EnqueueDelayed(ctx context.Context, taskID kernel.TaskID, payload any, delay time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal delayed payload for task %s: %w", taskID, err)
	}

	score := float64(time.Now().Add(delay).Unix())
	delayedQueue := q.queueName + ":delayed"

	if err := q.client.ZAdd(ctx, delayedQueue, redis.Z{
		Score:  score,
		Member: data,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue delayed task %s: %w", taskID, err)
	}

	return nil
}

// MoveDelayedToReady moves due delayed tasks to the main queue
func (q *RedisTaskQueue) MoveDelayedToReady(ctx context.Context) (int, error) {
	delayedQueue := q.queueName + ":delayed"
	now := float64(time.Now().Unix())

	tasks, err := q.client.ZRangeByScore(ctx, delayedQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("get delayed tasks: %w", err)
	}

	if len(tasks) == 0 {
		return 0, nil
	}

	pipe := q.client.Pipeline()
	for _, task := range tasks {
		pipe.LPush(ctx, q.queueName, task)
		pipe.ZRem(ctx, delayedQueue, task)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("move delayed tasks to ready: %w", err)
	}

	return len(tasks), nil
}

// Size returns the number of ready tasks
func (q *RedisTaskQueue) Size(ctx context.Context) (int64, error) {
	size, err := q.client.LLen(ctx, q.queueName).Result()
	if err != nil {
		return 0, fmt.Errorf("get queue size: %w", err)
	}
	return size, nil
}

// Ping checks if the Redis connection is alive
func (q *RedisTaskQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
