package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"eventcheckin/internal/clock"
	"eventcheckin/internal/domain"
)

type registrationService struct {
	eventRepo        domain.EventRepository
	registrationRepo domain.RegistrationRepository
	codec            domain.TicketCodec
	encoder          domain.QREncoder
	notifications    domain.NotificationQueue
	publisher        domain.EventPublisher
	clock            clock.Clock
	logger           *slog.Logger
}

// NewRegistrationService wires the registration lifecycle. Approval emails are
// handed to notifications after the approval commits; publisher receives a
// best-effort event for every committed step.
func NewRegistrationService(
	eventRepo domain.EventRepository,
	registrationRepo domain.RegistrationRepository,
	codec domain.TicketCodec,
	encoder domain.QREncoder,
	notifications domain.NotificationQueue,
	publisher domain.EventPublisher,
	clk clock.Clock,
	logger *slog.Logger,
) domain.RegistrationService {
	return &registrationService{
		eventRepo:        eventRepo,
		registrationRepo: registrationRepo,
		codec:            codec,
		encoder:          encoder,
		notifications:    notifications,
		publisher:        publisher,
		clock:            clk,
		logger:           logger,
	}
}

func (s *registrationService) Submit(ctx context.Context, eventID string, in domain.RegistrationInput) (*domain.Registration, error) {
	if errs := in.Validate(); len(errs) > 0 {
		return nil, &domain.ValidationError{Fields: errs}
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrEventNotAvailable
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	now := s.clock.Now()
	if err := event.AcceptingRegistrations(now); err != nil {
		return nil, err
	}

	reg := domain.NewRegistration(eventID, in, now)
	if _, err := s.registrationRepo.GetByEventAndEmail(ctx, eventID, reg.Email); err == nil {
		return nil, domain.ErrAlreadyRegistered
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get registration by email: %w", err)
	}

	// The store's uniqueness constraint settles races the lookup above cannot see.
	if err := s.registrationRepo.Create(ctx, reg); err != nil {
		if errors.Is(err, domain.ErrDuplicateRegistration) {
			return nil, domain.ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}
	s.logger.InfoContext(ctx, "registration submitted", "registration_id", reg.ID, "event_id", eventID)
	s.publish(ctx, domain.EventRegistrationSubmitted, reg)
	return reg, nil
}

func (s *registrationService) ListByEvent(ctx context.Context, eventID string, filter domain.RegistrationFilter, page domain.PaginationParams) ([]*domain.Registration, int, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, 0, domain.ErrNotFound
		}
		return nil, 0, fmt.Errorf("get event: %w", err)
	}
	regs, err := s.registrationRepo.ListByEvent(ctx, eventID, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	total := len(regs)
	if page.Paged() {
		if total, err = s.registrationRepo.CountByEvent(ctx, eventID, filter); err != nil {
			return nil, 0, fmt.Errorf("count registrations: %w", err)
		}
	}
	return regs, total, nil
}

func (s *registrationService) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	reg, err := s.registrationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (s *registrationService) Approve(ctx context.Context, id string) (*domain.Registration, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := domain.NextStatus(current.Status, domain.TransitionApprove); err != nil {
		return nil, err
	}

	token, err := s.codec.Issue(current.ID, current.EventID, current.Email)
	if err != nil {
		return nil, fmt.Errorf("issue ticket: %w", err)
	}
	qr, err := s.encoder.Encode(token)
	if err != nil {
		s.logger.ErrorContext(ctx, "qr encoding failed", "registration_id", id, "error", err)
		return nil, err
	}

	reg, err := s.registrationRepo.SetApproved(ctx, id, qr)
	if err != nil {
		return nil, transitionError("approve registration", err)
	}
	s.logger.InfoContext(ctx, "registration approved", "registration_id", reg.ID, "event_id", reg.EventID)

	n := domain.ApprovalNotification{RegistrationID: reg.ID, EventID: reg.EventID}
	if err := s.notifications.EnqueueApproval(ctx, n); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue approval email", "registration_id", reg.ID, "error", err)
	}
	s.publish(ctx, domain.EventRegistrationApproved, reg)
	return reg, nil
}

func (s *registrationService) Reject(ctx context.Context, id string) (*domain.Registration, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := domain.NextStatus(current.Status, domain.TransitionReject); err != nil {
		return nil, err
	}
	reg, err := s.registrationRepo.SetRejected(ctx, id)
	if err != nil {
		return nil, transitionError("reject registration", err)
	}
	s.logger.InfoContext(ctx, "registration rejected", "registration_id", reg.ID, "event_id", reg.EventID)
	s.publish(ctx, domain.EventRegistrationRejected, reg)
	return reg, nil
}

func (s *registrationService) CheckIn(ctx context.Context, token string) (*domain.Registration, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}
	current, err := s.GetByID(ctx, claims.RegistrationID)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckInAllowed(current); err != nil {
		return nil, err
	}
	reg, err := s.registrationRepo.MarkCheckedIn(ctx, current.ID, s.clock.Now())
	if err != nil {
		return nil, transitionError("check in", err)
	}
	s.logger.InfoContext(ctx, "attendee checked in", "registration_id", reg.ID, "event_id", reg.EventID)
	s.publish(ctx, domain.EventRegistrationCheckedIn, reg)
	return reg, nil
}

// transitionError passes the store's semantic rejections through untouched
// and wraps anything else.
func transitionError(op string, err error) error {
	for _, known := range []error{
		domain.ErrNotFound,
		domain.ErrAlreadyApproved,
		domain.ErrInvalidTransition,
		domain.ErrNotApproved,
		domain.ErrAlreadyCheckedIn,
	} {
		if errors.Is(err, known) {
			return known
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *registrationService) publish(ctx context.Context, eventType string, reg *domain.Registration) {
	if err := s.publisher.Publish(ctx, domain.NewRegistrationEvent(eventType, reg, s.clock.Now())); err != nil {
		s.logger.WarnContext(ctx, "failed to publish registration event", "type", eventType, "registration_id", reg.ID, "error", err)
	}
}
