package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenKind types a token for a single workflow step.
type TokenKind string

const (
	// TokenEmailVerification gates the email verification step.
	TokenEmailVerification TokenKind = "email_verification"
	// TokenSeatConfirmation gates seat confirmation and rejection.
	TokenSeatConfirmation TokenKind = "seat_confirmation"
)

// Token is a single-use, typed, expiring credential embedded in emailed
// links. Identifiers are never reused or recycled.
type Token struct {
	ID          uuid.UUID  `json:"id"`
	Kind        TokenKind  `json:"kind"`
	PersonEmail string     `json:"person_email"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
}

// Used reports whether the token has been consumed. Consumption is
// permanent: a used token is never valid again regardless of expiry.
func (t *Token) Used() bool { return t.UsedAt != nil }

// Valid reports whether the token can still be spent at the given instant.
func (t *Token) Valid(now time.Time) bool {
	return t.ExpiresAt.After(now) && !t.Used()
}
