package domain

import "time"

// TicketClaims is the payload bound into a QR ticket token.
type TicketClaims struct {
	RegistrationID string
	EventID        string
	Email          string
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// TicketCodec issues and verifies signed QR ticket tokens.
type TicketCodec interface {
	Issue(registrationID, eventID, email string) (string, error)
	// Verify returns ErrInvalidToken for malformed or forged tokens and
	// ErrExpiredToken once the validity window has elapsed.
	Verify(token string) (*TicketClaims, error)
}

// QREncoder renders a token into a scannable image artifact.
type QREncoder interface {
	// Encode returns ErrEncoding (wrapped) when the token does not fit.
	Encode(token string) (string, error)
}

// TokenVerifier verifies an organizer bearer token and returns the user ID.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}
