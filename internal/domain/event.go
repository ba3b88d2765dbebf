package domain

import (
	"context"
	"time"
)

// EventStatus is the publication state of an event.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCompleted EventStatus = "completed"
)

// Event is the organizer-managed event attendees register for.
// swagger:model Event
type Event struct {
	ID                   string      `json:"id"`
	Title                string      `json:"title"`
	Description          string      `json:"description"`
	Location             string      `json:"location"`
	Status               EventStatus `json:"status"`
	StartDate            time.Time   `json:"start_date"`
	EndDate              time.Time   `json:"end_date"`
	RegistrationDeadline *time.Time  `json:"registration_deadline"`
	CreatedAt            time.Time   `json:"created_at"`
}

// AcceptingRegistrations returns nil if the event takes new registrations at now.
// A deadline equal to now still accepts.
func (e *Event) AcceptingRegistrations(now time.Time) error {
	if e.Status != EventStatusPublished {
		return ErrEventNotAvailable
	}
	if e.RegistrationDeadline != nil && e.RegistrationDeadline.Before(now) {
		return ErrDeadlinePassed
	}
	return nil
}

// EventRepository is the read-only event lookup used by the registration core.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*Event, error)
}
