package domain

import (
	"time"

	"github.com/google/uuid"
)

// EditWindow is how long after creation the sender may still edit a message.
const EditWindow = 15 * time.Minute

type Message struct {
	ID        uuid.UUID   `json:"id"`
	ChatID    uuid.UUID   `json:"chat_id"`
	SenderID  uuid.UUID   `json:"sender_id"`
	Content   *string     `json:"content,omitempty"`
	File      *Attachment `json:"file,omitempty"`
	ReplyToID *uuid.UUID  `json:"reply_to_id,omitempty"`
	Edited    bool        `json:"edited"`
	Pinned    bool        `json:"pinned"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	// Resolved for display.
	Sender    *User       `json:"sender,omitempty"`
	ReplyTo   *Message    `json:"reply_to,omitempty"`
	Reactions []Reaction  `json:"reactions,omitempty"`
	ReadBy    []uuid.UUID `json:"read_by,omitempty"`
}

// Attachment describes a file hosted on the external media host.
type Attachment struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
}

const (
	AttachmentKindImage = "image"
	AttachmentKindVideo = "video"
	AttachmentKindRaw   = "raw"
)

type Reaction struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// AllowedReactions is the closed set of emoji a message may be reacted with.
var AllowedReactions = map[string]struct{}{
	"👍": {},
	"❤️": {},
	"😂": {},
	"😮": {},
	"😢": {},
	"😡": {},
}

func IsAllowedReaction(emoji string) bool {
	_, ok := AllowedReactions[emoji]
	return ok
}

// MessageRead is one row of a message's read-receipt set. Rows are only
// ever inserted, never deleted, which is what keeps the set monotonic.
type MessageRead struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}
