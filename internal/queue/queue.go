// Package queue carries orchestration tasks from the API to the workers
// over a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list holding pending tasks.
const DefaultKey = "grapharna:tasks"

// DefaultConsumer names the processing list of a queue built without
// WithConsumer.
const DefaultConsumer = "default"

// Queue is a FIFO of job tasks with at-least-once delivery. A dequeued task
// stays in the consumer's processing list until it is acknowledged.
type Queue interface {
	Enqueue(ctx context.Context, task models.Task) error
	// Dequeue blocks for up to wait. It returns ok=false when nothing
	// arrived in time.
	Dequeue(ctx context.Context, wait time.Duration) (task models.Task, ok bool, err error)
	// Ack drops a finished task from the processing list.
	Ack(ctx context.Context, task models.Task) error
	// Recover puts tasks left unacknowledged by an earlier run of this
	// consumer back at the head of the queue and reports how many.
	Recover(ctx context.Context) (int, error)
	Len(ctx context.Context) (int64, error)
}

// RedisQueue implements Queue with LPUSH, BLMOVE and LREM.
type RedisQueue struct {
	client     *redis.Client
	key        string
	processing string
}

// Option configures a RedisQueue.
type Option func(*RedisQueue)

// WithConsumer sets the name of the processing list. It must be stable
// across restarts of the same worker for Recover to find its tasks.
func WithConsumer(name string) Option {
	return func(q *RedisQueue) {
		if name != "" {
			q.processing = ProcessingKey(q.key, name)
		}
	}
}

// ProcessingKey is the list holding the in-flight tasks of one consumer.
func ProcessingKey(key, consumer string) string {
	return key + ":processing:" + consumer
}

// NewRedisQueue creates a queue on the given list key.
func NewRedisQueue(client *redis.Client, key string, opts ...Option) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	q := &RedisQueue{client: client, key: key, processing: ProcessingKey(key, DefaultConsumer)}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *RedisQueue) Enqueue(ctx context.Context, task models.Task) error {
	b, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, b).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (models.Task, bool, error) {
	raw, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", wait).Result()
	if errors.Is(err, redis.Nil) {
		return models.Task{}, false, nil
	}
	if err != nil {
		return models.Task{}, false, fmt.Errorf("dequeue task: %w", err)
	}
	var task models.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		// Undecodable payloads would be redelivered forever.
		q.client.LRem(ctx, q.processing, 1, raw)
		return models.Task{}, false, fmt.Errorf("decode task: %w", err)
	}
	return task, true, nil
}

// Ack removes the task by re-encoding it; Task encodes deterministically.
func (q *RedisQueue) Ack(ctx context.Context, task models.Task) error {
	b, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.LRem(ctx, q.processing, 1, b).Err(); err != nil {
		return fmt.Errorf("ack task: %w", err)
	}
	return nil
}

func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.key, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover tasks: %w", err)
		}
		n++
	}
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

var _ Queue = (*RedisQueue)(nil)
