// Package queue carries notification jobs from the lifecycle service to the
// notification worker so that email delivery is retried independently of the
// request that approved a registration.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"eventcheckin/internal/domain"
)

const (
	// MaxAttempts is the number of deliveries before a job moves to the dead-letter list.
	MaxAttempts = 3
	// RetryBackoff is the delay the worker waits after a failed job.
	RetryBackoff = 10 * time.Second
)

// ErrQueueFull is returned by bounded queues that cannot accept more jobs.
var ErrQueueFull = errors.New("notification queue is full")

// JobType identifies the job kind.
type JobType string

const JobTypeApprovalEmail JobType = "approval_email"

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue is the worker side of a notification queue.
type Queue interface {
	domain.NotificationQueue
	// Dequeue waits for the next job. It returns (nil, nil) when nothing
	// arrived within the poll interval and ctx.Err() once ctx is done.
	Dequeue(ctx context.Context) (*Job, error)
	// Retry re-enqueues job with an incremented attempt, or dead-letters it
	// once MaxAttempts is reached. A retried job is never silently dropped.
	Retry(ctx context.Context, job *Job) error
}

func newApprovalJob(n domain.ApprovalNotification) (*Job, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      JobTypeApprovalEmail,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now().UTC(),
	}, nil
}
