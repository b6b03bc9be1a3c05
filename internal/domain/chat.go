package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type ChatType string

const (
	ChatTypeOneOnOne  ChatType = "one_on_one"
	ChatTypeGroup     ChatType = "group"
	ChatTypeEventChat ChatType = "event_chat"
)

// ParentKind names the entity a bound chat hangs off.
type ParentKind string

const (
	ParentKindGroup ParentKind = "group"
	ParentKindEvent ParentKind = "event"
)

type Chat struct {
	ID             uuid.UUID  `json:"id"`
	ChatType       ChatType   `json:"chat_type"`
	PairKey        *string    `json:"-"`
	GroupID        *uuid.UUID `json:"group_id,omitempty"`
	EventID        *uuid.UUID `json:"event_id,omitempty"`
	LastMessageID  *uuid.UUID `json:"last_message_id,omitempty"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Resolved for display, not persisted on the chats row.
	Participants []*User  `json:"participants,omitempty"`
	LastMessage  *Message `json:"last_message,omitempty"`
}

// IsBound reports whether the chat's lifecycle is derived from a parent
// group or event.
func (c *Chat) IsBound() bool {
	return c.ChatType == ChatTypeGroup || c.ChatType == ChatTypeEventChat
}

// PairKeyFor builds the canonical key for a one-on-one chat: the two
// participant ids sorted lexically and joined with a colon. The unique
// index on this key is what collapses concurrent creations to one chat.
func PairKeyFor(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

type ChatParticipant struct {
	ChatID   uuid.UUID `json:"chat_id"`
	UserID   uuid.UUID `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}
