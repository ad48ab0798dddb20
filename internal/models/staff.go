package models

import (
	"time"

	"github.com/google/uuid"
)

// StaffRole is the capability level of a staff account.
type StaffRole string

const (
	// StaffRoleStaff can run the desk: check-in, passes, attendance.
	StaffRoleStaff StaffRole = "staff"
	// StaffRoleAdmin additionally accepts participants, edits attendance
	// records and manages pass types.
	StaffRoleAdmin StaffRole = "admin"
)

// StaffUser is a desk or operator account. Participants never log in;
// staff accounts exist only to authorize the on-site endpoints.
type StaffUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         StaffRole `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
