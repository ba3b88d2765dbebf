package queue

import (
	"context"
	"log/slog"
	"sync"

	"eventcheckin/internal/domain"
)

// MemoryQueue is an in-process queue for single-instance deployments and tests.
// Jobs are lost on restart.
type MemoryQueue struct {
	jobs   chan *Job
	logger *slog.Logger

	mu          sync.Mutex
	deadLetters []*Job
}

// NewMemoryQueue returns a queue holding at most capacity pending jobs.
func NewMemoryQueue(capacity int, logger *slog.Logger) *MemoryQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryQueue{jobs: make(chan *Job, capacity), logger: logger}
}

func (q *MemoryQueue) EnqueueApproval(_ context.Context, n domain.ApprovalNotification) error {
	job, err := newApprovalJob(n)
	if err != nil {
		return err
	}
	return q.offer(job)
}

func (q *MemoryQueue) offer(job *Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Retry re-enqueues job, dead-lettering it once MaxAttempts is reached or
// when the queue has no room left for it.
func (q *MemoryQueue) Retry(_ context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxAttempts {
		q.deadLetter(job, "attempts exhausted")
		return nil
	}
	if err := q.offer(job); err != nil {
		q.deadLetter(job, "queue full")
	}
	return nil
}

func (q *MemoryQueue) deadLetter(job *Job, reason string) {
	q.mu.Lock()
	q.deadLetters = append(q.deadLetters, job)
	q.mu.Unlock()
	q.logger.Warn("job moved to DLQ", "job_id", job.ID, "attempt", job.Attempt, "reason", reason)
}

// Len returns the number of pending jobs.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

// DeadLetters returns a copy of the dead-lettered jobs.
func (q *MemoryQueue) DeadLetters() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Job, len(q.deadLetters))
	copy(out, q.deadLetters)
	return out
}
