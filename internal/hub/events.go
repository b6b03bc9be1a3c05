package hub

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Server-to-client event vocabulary. Both write paths (REST and socket)
// broadcast with these names so clients see one protocol.
const (
	EventConnected               = "connected"
	EventChatJoined              = "chatJoined"
	EventNewMessage              = "newMessage"
	EventMessageUpdated          = "messageUpdated"
	EventMessageDeleted          = "messageDeleted"
	EventChatMessagesUpdated     = "chatMessagesUpdated"
	EventChatParticipantsUpdated = "chatParticipantsUpdated"
	EventTyping                  = "typing"
	EventSocketError             = "socketError"
)

// Client-to-server event names.
const (
	ActionJoinRoom    = "joinRoom"
	ActionLeaveRoom   = "leaveRoom"
	ActionTyping      = "typing"
	ActionSendMessage = "sendMessage"
)

// Event is one frame on the socket, in either direction.
type Event struct {
	Type    string          `json:"type"`
	ChatID  *uuid.UUID      `json:"chat_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutEvent is a server-to-client frame with an already-marshalable payload.
type OutEvent struct {
	Type    string     `json:"type"`
	ChatID  *uuid.UUID `json:"chat_id,omitempty"`
	Payload any        `json:"payload,omitempty"`
}

func NewOutEvent(eventType string, chatID uuid.UUID, payload any) OutEvent {
	id := chatID
	return OutEvent{Type: eventType, ChatID: &id, Payload: payload}
}

// TypingPayload is the ephemeral typing indicator; it is never persisted.
type TypingPayload struct {
	ChatID   uuid.UUID `json:"chat_id"`
	UserID   uuid.UUID `json:"user_id"`
	IsTyping bool      `json:"is_typing"`
}

// ErrorPayload is delivered as a scoped socketError to one connection.
type ErrorPayload struct {
	Message string `json:"message"`
}
