package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records moderation-relevant events: rejected content,
// deletions, reports. Append-only.
type AuditLog struct {
	ID          int64          `json:"id"`
	EventTime   time.Time      `json:"event_time"`
	ActorUserID *uuid.UUID     `json:"actor_user_id,omitempty"`
	ChatID      *uuid.UUID     `json:"chat_id,omitempty"`
	EventType   string         `json:"event_type"`
	Payload     map[string]any `json:"payload"`
}

const (
	EventTypeContentRejected = "CONTENT_REJECTED"
	EventTypeMessageDeleted  = "MESSAGE_DELETED"
	EventTypeMessageReported = "MESSAGE_REPORTED"
	EventTypeChatDeleted     = "CHAT_DELETED"
)
