package services

import (
	"context"
	"errors"
	"fmt"

	"eventcheckin/internal/domain"
)

type attendanceService struct {
	eventRepo        domain.EventRepository
	registrationRepo domain.RegistrationRepository
}

// NewAttendanceService returns the read-only attendance aggregator.
func NewAttendanceService(eventRepo domain.EventRepository, registrationRepo domain.RegistrationRepository) domain.AttendanceService {
	return &attendanceService{eventRepo: eventRepo, registrationRepo: registrationRepo}
}

func (s *attendanceService) Stats(ctx context.Context, eventID string) (*domain.AttendanceStats, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	counts, err := s.registrationRepo.CountsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	return domain.NewAttendanceStats(*counts), nil
}
