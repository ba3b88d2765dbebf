// Package worker drains the notification queue and delivers approval emails.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventcheckin/internal/domain"
	"eventcheckin/internal/queue"
)

const (
	defaultDescription = "No description provided"
	defaultLocation    = "No location provided"
)

// NotificationWorker sends approval emails queued by the registration service.
type NotificationWorker struct {
	registrationRepo domain.RegistrationRepository
	eventRepo        domain.EventRepository
	emails           domain.EmailService
	queue            queue.Queue
	logger           *slog.Logger
	backoff          time.Duration
}

// NewNotificationWorker creates a worker reading from q.
func NewNotificationWorker(
	registrationRepo domain.RegistrationRepository,
	eventRepo domain.EventRepository,
	emails domain.EmailService,
	q queue.Queue,
	logger *slog.Logger,
) *NotificationWorker {
	return &NotificationWorker{
		registrationRepo: registrationRepo,
		eventRepo:        eventRepo,
		emails:           emails,
		queue:            q,
		logger:           logger,
		backoff:          queue.RetryBackoff,
	}
}

// Process executes one job. Jobs whose registration or event has gone away, or
// whose registration is no longer approved, are dropped without error.
func (w *NotificationWorker) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeApprovalEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var n domain.ApprovalNotification
	if err := json.Unmarshal(job.Payload, &n); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	reg, err := w.registrationRepo.GetByID(ctx, n.RegistrationID)
	if errors.Is(err, domain.ErrNotFound) {
		w.logger.WarnContext(ctx, "registration vanished, dropping approval email", "registration_id", n.RegistrationID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get registration: %w", err)
	}
	if reg.Status != domain.StatusApproved || reg.QRCode == "" {
		w.logger.InfoContext(ctx, "registration not approved, dropping approval email", "registration_id", reg.ID, "status", reg.Status)
		return nil
	}

	event, err := w.eventRepo.GetByID(ctx, reg.EventID)
	if errors.Is(err, domain.ErrNotFound) {
		w.logger.WarnContext(ctx, "event vanished, dropping approval email", "event_id", reg.EventID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}

	data := &domain.RegistrationApprovedEmailData{
		Email:            reg.Email,
		FullName:         reg.FullName,
		EventTitle:       event.Title,
		EventDescription: orDefault(event.Description, defaultDescription),
		EventLocation:    orDefault(event.Location, defaultLocation),
		StartDate:        event.StartDate,
		EndDate:          event.EndDate,
		QRCode:           reg.QRCode,
	}
	return w.emails.SendRegistrationApproved(ctx, data)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Run is the worker loop: dequeue, process, retry on error. It returns when ctx is done.
func (w *NotificationWorker) Run(ctx context.Context) {
	w.logger.Info("notification worker started")
	for {
		if ctx.Err() != nil {
			w.logger.Info("notification worker stopping")
			return
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Warn("dequeue error", "error", err)
			w.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		w.logger.Debug("processing job", "job_id", job.ID, "type", job.Type, "attempt", job.Attempt)
		if err := w.Process(ctx, job); err != nil {
			w.logger.Error("job failed", "job_id", job.ID, "attempt", job.Attempt, "error", err)
			if reErr := w.queue.Retry(ctx, job); reErr != nil {
				w.logger.Error("retry enqueue failed", "job_id", job.ID, "error", reErr)
			}
			w.sleep(ctx)
		}
	}
}

func (w *NotificationWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
