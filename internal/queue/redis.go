package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"eventcheckin/internal/domain"
)

const (
	// KeyNotifications is the Redis list key for notification jobs.
	KeyNotifications = "worker:notifications"
	// KeyDeadLetters is the Redis list key for jobs that exhausted their attempts.
	KeyDeadLetters = "worker:notifications:dlq"

	defaultPollTimeout = 5 * time.Second
)

// RedisQueue enqueues and dequeues jobs via Redis lists.
type RedisQueue struct {
	client      *redis.Client
	logger      *slog.Logger
	pollTimeout time.Duration
}

// NewRedisQueue creates a Redis-backed notification queue.
func NewRedisQueue(client *redis.Client, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{client: client, logger: logger, pollTimeout: defaultPollTimeout}
}

// EnqueueApproval enqueues an approval email job.
func (q *RedisQueue) EnqueueApproval(ctx context.Context, n domain.ApprovalNotification) error {
	job, err := newApprovalJob(n)
	if err != nil {
		return err
	}
	if err := q.push(ctx, KeyNotifications, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued approval email job", "job_id", job.ID, "registration_id", n.RegistrationID)
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, q.pollTimeout, KeyNotifications).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", "raw", result[1], "err", err)
		return nil, nil
	}
	return &job, nil
}

func (q *RedisQueue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxAttempts {
		if err := q.push(ctx, KeyDeadLetters, job); err != nil {
			q.logger.Error("dlq push failed", "job_id", job.ID, "err", err)
			return err
		}
		q.logger.Warn("job moved to DLQ", "job_id", job.ID, "attempt", job.Attempt)
		return nil
	}
	if err := q.push(ctx, KeyNotifications, job); err != nil {
		return err
	}
	q.logger.Info("job retried", "job_id", job.ID, "attempt", job.Attempt)
	return nil
}

func (q *RedisQueue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}
