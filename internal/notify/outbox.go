// Package notify hands "job finished" messages to the external mail sender
// through a Redis list.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GraphaRNA-web/GraphaRNA-web/pkg/models"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the list the mail sender consumes.
const DefaultKey = "notifications"

// Notifier is told about jobs that reached a terminal state.
type Notifier interface {
	JobFinished(ctx context.Context, job *models.Job) error
}

// Message is the JSON document pushed for each finished job.
type Message struct {
	Type       string    `json:"type"`
	Email      string    `json:"email"`
	JobName    string    `json:"job_name"`
	HashedUID  string    `json:"uidh"`
	Status     string    `json:"status"`
	FinishedAt time.Time `json:"finished_at"`
}

// RedisOutbox implements Notifier with LPUSH.
type RedisOutbox struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewRedisOutbox(client *redis.Client, key string) *RedisOutbox {
	if key == "" {
		key = DefaultKey
	}
	return &RedisOutbox{client: client, key: key, now: time.Now}
}

// JobFinished enqueues a message for jobs with an email address and is a
// no-op otherwise.
func (o *RedisOutbox) JobFinished(ctx context.Context, job *models.Job) error {
	if job.Email == nil || *job.Email == "" {
		return nil
	}
	b, err := json.Marshal(Message{
		Type:       "job_finished",
		Email:      *job.Email,
		JobName:    job.JobName,
		HashedUID:  job.HashedUID,
		Status:     job.Status,
		FinishedAt: o.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := o.client.LPush(ctx, o.key, b).Err(); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

var _ Notifier = (*RedisOutbox)(nil)
