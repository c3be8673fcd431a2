package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"marketchat/backend/internal/models"
)

const outboxKeyPrefix = "notify:outbox:"

// ErrOutboxDisabled is returned when the service was built without Redis.
var ErrOutboxDisabled = errors.New("outbox disabled: no redis client")

// OutboxJob asks an external delivery worker to send a notification over one channel.
type OutboxJob struct {
	NotificationID uint           `json:"notification_id"`
	UserID         string         `json:"user_id"`
	Channel        models.Channel `json:"channel"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	EnqueuedAt     time.Time      `json:"enqueued_at"`
}

// OutboxKey is the Redis list a channel's jobs are pushed to.
func OutboxKey(channel models.Channel) string {
	return outboxKeyPrefix + string(channel)
}

// EnqueueOutbox appends a job to the channel's Redis list.
func (s *Service) EnqueueOutbox(ctx context.Context, job OutboxJob) error {
	if s.Redis == nil {
		return ErrOutboxDisabled
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := s.Redis.RPush(ctx, OutboxKey(job.Channel), payload).Err(); err != nil {
		return &Error{Op: "enqueue outbox", Err: err}
	}
	return nil
}

// OutboxLen reports how many jobs wait on a channel.
func (s *Service) OutboxLen(ctx context.Context, channel models.Channel) (int64, error) {
	if s.Redis == nil {
		return 0, ErrOutboxDisabled
	}
	n, err := s.Redis.LLen(ctx, OutboxKey(channel)).Result()
	if err != nil {
		return 0, &Error{Op: "outbox length", Err: err}
	}
	return n, nil
}
