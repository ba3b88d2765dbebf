package domain

import (
	"errors"
	"strings"
)

// Sentinel errors shared by stores, services and the HTTP layer.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	ErrEventNotAvailable = errors.New("event not found or not accepting registrations")
	ErrDeadlinePassed    = errors.New("registration deadline has passed")

	// ErrDuplicateRegistration is returned by stores when (event_id, email) already exists.
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrAlreadyRegistered     = errors.New("you have already registered for this event")

	ErrAlreadyApproved   = errors.New("registration is already approved")
	ErrInvalidTransition = errors.New("invalid registration status transition")
	ErrNotApproved       = errors.New("registration is not approved")
	ErrAlreadyCheckedIn  = errors.New("attendee already checked in")

	// ErrInvalidToken and ErrExpiredToken carry the same message so callers
	// cannot tell a bad signature from an expired ticket.
	ErrInvalidToken = errors.New("invalid or expired QR code")
	ErrExpiredToken = errors.New("invalid or expired QR code")

	ErrEncoding = errors.New("failed to generate QR code")
)

// ValidationError lists the invalid attendee fields. errors.Is matches ErrInvalidInput.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }
