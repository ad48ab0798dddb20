package models

import (
	"time"

	"github.com/google/uuid"
)

// PassType is a category of on-site benefit (meals, swag, ...) that
// becomes issuable once its validity window opens.
type PassType struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ValidFrom time.Time `json:"valid_from"`
}

// Issuable reports whether passes of this type can be issued now.
func (t *PassType) Issuable(now time.Time) bool {
	return !t.ValidFrom.After(now)
}

// Pass records one claim of a pass type by a badge holder. IssuedAt is
// server-assigned; the (person, type, issued_at) triple is unique.
type Pass struct {
	ID          uuid.UUID `json:"id"`
	PersonEmail string    `json:"person_email"`
	PassTypeID  uuid.UUID `json:"pass_type_id"`
	IssuedAt    time.Time `json:"issued_at"`
}
