package models

import (
	"time"

	"github.com/google/uuid"
)

// Email delivery statuses.
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

// EmailLog records one outbound mail attempt for operator inspection.
type EmailLog struct {
	ID        uuid.UUID `json:"id"`
	Template  string    `json:"template"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
