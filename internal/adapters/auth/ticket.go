package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"eventcheckin/internal/clock"
	"eventcheckin/internal/domain"
)

// DefaultTicketTTL is how long a QR ticket stays valid after issue.
const DefaultTicketTTL = 30 * 24 * time.Hour

const (
	ticketAudience = "qr-ticket"
	ticketKeyInfo  = "eventcheckin qr-ticket hs256 v1"
)

type ticketClaims struct {
	jwt.RegisteredClaims
	RegistrationID string `json:"registration_id"`
	EventID        string `json:"event_id"`
	Email          string `json:"email"`
}

type ticketCodec struct {
	key   []byte
	ttl   time.Duration
	clock clock.Clock
}

// NewTicketCodec returns a TicketCodec signing HS256 JWTs with a key derived
// from secret. A ticket is valid while now < issued_at + ttl.
func NewTicketCodec(secret string, ttl time.Duration, clk clock.Clock) (domain.TicketCodec, error) {
	if secret == "" {
		return nil, errors.New("ticket secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	key, err := deriveTicketKey(secret)
	if err != nil {
		return nil, err
	}
	return &ticketCodec{key: key, ttl: ttl, clock: clk}, nil
}

func deriveTicketKey(secret string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(ticketKeyInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive ticket key: %w", err)
	}
	return key, nil
}

func (c *ticketCodec) Issue(registrationID, eventID, email string) (string, error) {
	now := c.clock.Now().Truncate(time.Second)
	claims := ticketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{ticketAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		RegistrationID: registrationID,
		EventID:        eventID,
		Email:          email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket: %w", err)
	}
	return token, nil
}

func (c *ticketCodec) Verify(token string) (*domain.TicketClaims, error) {
	claims := &ticketClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(ticketAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrExpiredToken
		}
		return nil, domain.ErrInvalidToken
	}
	if claims.RegistrationID == "" || claims.EventID == "" || claims.IssuedAt == nil {
		return nil, domain.ErrInvalidToken
	}
	return &domain.TicketClaims{
		RegistrationID: claims.RegistrationID,
		EventID:        claims.EventID,
		Email:          claims.Email,
		IssuedAt:       claims.IssuedAt.Time.UTC(),
		ExpiresAt:      claims.ExpiresAt.Time.UTC(),
	}, nil
}
