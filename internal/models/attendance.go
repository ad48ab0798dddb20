package models

import (
	"time"

	"github.com/google/uuid"
)

// PresenceState is the derived in/out state of a badge holder.
type PresenceState string

const (
	PresenceIn  PresenceState = "in"
	PresenceOut PresenceState = "out"
)

// AttendanceRecord is one in/out interval for a badge holder. Either half
// may be missing: an exit scan with no open entry produces an exit-only
// record rather than dropping the scan.
type AttendanceRecord struct {
	ID          uuid.UUID  `json:"id"`
	PersonEmail string     `json:"person_email"`
	EnteredAt   *time.Time `json:"entered_at,omitempty"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Open reports whether the record has an entry awaiting its exit.
func (r *AttendanceRecord) Open() bool {
	return r.EnteredAt != nil && r.LeftAt == nil
}

// Duration is the closed interval length, zero while either half is
// missing.
func (r *AttendanceRecord) Duration() time.Duration {
	if r.EnteredAt == nil || r.LeftAt == nil {
		return 0
	}
	return r.LeftAt.Sub(*r.EnteredAt)
}

// TotalDuration sums the closed intervals, truncated to whole seconds.
// Open and exit-only records contribute zero, and the result does not
// depend on record order.
func TotalDuration(records []AttendanceRecord) time.Duration {
	var total time.Duration
	for i := range records {
		total += records[i].Duration()
	}
	return total.Truncate(time.Second)
}

// PresenceOf derives the in/out state from the newest record. No records
// means never entered.
func PresenceOf(newest *AttendanceRecord) PresenceState {
	if newest != nil && newest.Open() {
		return PresenceIn
	}
	return PresenceOut
}
