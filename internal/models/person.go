package models

import "time"

// Role discriminates the person variants sharing the persons table.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleMentor      Role = "mentor"
	RoleSponsor     Role = "sponsor"
)

// Shirt sizes offered on the registration form.
var ShirtSizes = []string{"S", "M", "L", "XL", "2XL", "3XL"}

// StudyLevel values accepted on the registration form.
var StudyLevels = []string{"VOCATIONAL", "UNIVERSITY", "MASTER", "OTHER"}

// MaxVerifyErrorLen bounds the recorded verification-mail failure reason.
const MaxVerifyErrorLen = 4096

// Person is a registered person: participant, mentor or sponsor. Email is
// the primary identity. Badge code is assigned once at the check-in desk
// and never changes. Lifecycle state is carried as nullable timestamps;
// the boolean views over them are derived, never stored.
type Person struct {
	Email          string   `json:"email"`
	Role           Role     `json:"role"`
	FullName       string   `json:"full_name"`
	Notes          string   `json:"notes,omitempty"`
	Badge          *string  `json:"badge_code,omitempty"`
	Dietary        []string `json:"dietary_restrictions,omitempty"`
	DietaryDetails string   `json:"dietary_details,omitempty"`

	// Sponsor only.
	Company string `json:"company,omitempty"`

	// Participant and mentor.
	Phone        string     `json:"phone,omitempty"`
	BirthDate    *time.Time `json:"birth_date,omitempty"`
	ShirtSize    string     `json:"shirt_size,omitempty"`
	StudyLevel   string     `json:"study_level,omitempty"`
	StudyName    string     `json:"study_name,omitempty"`
	StudyCenter  string     `json:"study_center,omitempty"`
	StudyYear    string     `json:"study_year,omitempty"`
	City         string     `json:"city,omitempty"`
	WantsCredits bool       `json:"wants_credits,omitempty"`
	Motivation   string     `json:"motivation,omitempty"`
	CVKey        string     `json:"-"`
	ShareCV      bool       `json:"share_cv,omitempty"`

	RegisteredAt     *time.Time `json:"registered_at,omitempty"`
	EmailVerifiedAt  *time.Time `json:"email_verified_at,omitempty"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
	SeatConfirmedAt  *time.Time `json:"seat_confirmed_at,omitempty"`
	SeatRejectedAt   *time.Time `json:"seat_rejected_at,omitempty"`
	VerifyEmailError string     `json:"-"`
}

// Verified reports whether the email address has been verified.
func (p *Person) Verified() bool { return p.EmailVerifiedAt != nil }

// Accepted reports whether an operator accepted the application.
func (p *Person) Accepted() bool { return p.AcceptedAt != nil }

// Confirmed reports whether the seat was confirmed.
func (p *Person) Confirmed() bool { return p.SeatConfirmedAt != nil }

// Rejected reports whether the seat was rejected.
func (p *Person) Rejected() bool { return p.SeatRejectedAt != nil }

// HasBadge reports whether a badge code has been assigned.
func (p *Person) HasBadge() bool { return p.Badge != nil && *p.Badge != "" }

// VerifyFailed reports whether the verification mail failed and the
// address is still unverified.
func (p *Person) VerifyFailed() bool {
	return p.VerifyEmailError != "" && p.EmailVerifiedAt == nil
}

// LifecycleState is the participant workflow state derived from timestamps.
type LifecycleState string

const (
	StateRegistered    LifecycleState = "registered"
	StateEmailVerified LifecycleState = "email_verified"
	StateAccepted      LifecycleState = "accepted"
	StateSeatConfirmed LifecycleState = "seat_confirmed"
	StateSeatRejected  LifecycleState = "seat_rejected"
)

// State derives the workflow state from the lifecycle timestamps.
func (p *Person) State() LifecycleState {
	switch {
	case p.SeatRejectedAt != nil:
		return StateSeatRejected
	case p.SeatConfirmedAt != nil:
		return StateSeatConfirmed
	case p.AcceptedAt != nil:
		return StateAccepted
	case p.EmailVerifiedAt != nil:
		return StateEmailVerified
	default:
		return StateRegistered
	}
}
