package domain

import (
	"context"
	"time"
)

// Registration event types published after a lifecycle step commits.
const (
	EventRegistrationSubmitted = "registration.submitted"
	EventRegistrationApproved  = "registration.approved"
	EventRegistrationRejected  = "registration.rejected"
	EventRegistrationCheckedIn = "registration.checked_in"
)

// RegistrationEvent is the message published for each lifecycle step.
type RegistrationEvent struct {
	Type           string             `json:"type"`
	RegistrationID string             `json:"registration_id"`
	EventID        string             `json:"event_id"`
	Email          string             `json:"email"`
	Status         RegistrationStatus `json:"status"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// NewRegistrationEvent builds an event of the given type from reg.
func NewRegistrationEvent(eventType string, reg *Registration, at time.Time) RegistrationEvent {
	return RegistrationEvent{
		Type:           eventType,
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		Email:          reg.Email,
		Status:         reg.Status,
		OccurredAt:     at,
	}
}

// EventPublisher delivers registration events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev RegistrationEvent) error
}
