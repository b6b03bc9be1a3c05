package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageReport is a moderation report filed against a message. Reports
// are deleted together with the message they target.
type MessageReport struct {
	ID         uuid.UUID `json:"id"`
	MessageID  uuid.UUID `json:"message_id"`
	ReporterID uuid.UUID `json:"reporter_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}
