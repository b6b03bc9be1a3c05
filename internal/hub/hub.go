package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"

	apperrors "campus_connect/pkg/errors"
	"campus_connect/pkg/logger"
)

// Session is one authenticated socket connection as the hub sees it.
// *Client implements it; tests substitute a recording fake.
type Session interface {
	ID() string
	UserID() uuid.UUID
	// Deliver enqueues an event without blocking. It returns false when
	// the session's buffer is full (slow consumer).
	Deliver(event OutEvent) bool
	CloseWithReason(reason string)
}

// MembershipChecker re-checks persisted chat membership on every join.
// Room state is never trusted over the database.
type MembershipChecker interface {
	IsParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
}

// Hub routes events to the sessions currently joined to each chat's
// room. Room membership is runtime-only state: it mirrors, and must stay
// a subset of, the chat's persisted participant set.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]Session
	rooms        map[uuid.UUID]map[string]Session
	sessionRooms map[string]map[uuid.UUID]struct{}

	membership MembershipChecker
	bridge     *Bridge
	log        logger.Logger
}

func New(membership MembershipChecker, log logger.Logger) *Hub {
	return &Hub{
		sessions:     make(map[string]Session),
		rooms:        make(map[uuid.UUID]map[string]Session),
		sessionRooms: make(map[string]map[uuid.UUID]struct{}),
		membership:   membership,
		log:          log,
	}
}

// SetBridge attaches the cross-instance pub/sub bridge. Optional: a
// single-instance deployment runs without one.
func (h *Hub) SetBridge(bridge *Bridge) {
	h.bridge = bridge
}

// Attach registers an authenticated session. Multiple sessions per user
// are allowed (multiple devices).
func (h *Hub) Attach(session Session) {
	h.mu.Lock()
	h.sessions[session.ID()] = session
	h.sessionRooms[session.ID()] = make(map[uuid.UUID]struct{})
	h.mu.Unlock()
}

// Detach unbinds the session from every room and forgets it. Persisted
// chat state is untouched: presence is not membership.
func (h *Hub) Detach(session Session) {
	h.mu.Lock()
	for chatID := range h.sessionRooms[session.ID()] {
		h.leaveLocked(chatID, session.ID())
	}
	delete(h.sessionRooms, session.ID())
	delete(h.sessions, session.ID())
	h.mu.Unlock()
}

// JoinRoom binds the session to the chat's room after re-checking the
// caller's persisted membership. A refusal is scoped to this session and
// leaves the connection open.
func (h *Hub) JoinRoom(ctx context.Context, session Session, chatID uuid.UUID) error {
	ok, err := h.membership.IsParticipant(ctx, chatID, session.UserID())
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrNotParticipant
	}

	h.mu.Lock()
	if _, tracked := h.sessions[session.ID()]; !tracked {
		h.mu.Unlock()
		return apperrors.ErrUnauthorized
	}

	room := h.rooms[chatID]
	if room == nil {
		room = make(map[string]Session)
		h.rooms[chatID] = room
	}
	room[session.ID()] = session
	h.sessionRooms[session.ID()][chatID] = struct{}{}
	h.mu.Unlock()

	return nil
}

// LeaveRoom is unconditional.
func (h *Hub) LeaveRoom(session Session, chatID uuid.UUID) {
	h.mu.Lock()
	h.leaveLocked(chatID, session.ID())
	h.mu.Unlock()
}

// Broadcast delivers the event to every session in the chat's room,
// including the originator's other connections, and forwards it to other
// instances through the bridge.
func (h *Hub) Broadcast(chatID uuid.UUID, eventType string, payload any) {
	event := NewOutEvent(eventType, chatID, payload)
	h.deliverLocal(chatID, event, uuid.Nil)
	if h.bridge != nil {
		h.bridge.Publish(chatID, event, uuid.Nil)
	}
}

// BroadcastExcept is Broadcast minus every session of one user. Used for
// typing indicators, which must not echo back to the typist.
func (h *Hub) BroadcastExcept(chatID uuid.UUID, eventType string, payload any, exclude uuid.UUID) {
	event := NewOutEvent(eventType, chatID, payload)
	h.deliverLocal(chatID, event, exclude)
	if h.bridge != nil {
		h.bridge.Publish(chatID, event, exclude)
	}
}

// InRoom reports whether the session is currently joined to the chat's
// room. Room traffic that bypasses JoinRoom must check this first:
// joining is where persisted membership gets verified.
func (h *Hub) InRoom(session Session, chatID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[chatID][session.ID()]
	return ok
}

// RoomSize reports how many sessions are currently joined to the chat.
func (h *Hub) RoomSize(chatID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// deliverLocal fans the event out to the local room. Delivery must never
// block on a slow connection: a session whose buffer is full is dropped
// instead of stalling the sender.
func (h *Hub) deliverLocal(chatID uuid.UUID, event OutEvent, exclude uuid.UUID) {
	h.mu.RLock()
	room := h.rooms[chatID]
	var slow []Session
	for _, session := range room {
		if exclude != uuid.Nil && session.UserID() == exclude {
			continue
		}
		if !session.Deliver(event) {
			slow = append(slow, session)
		}
	}
	h.mu.RUnlock()

	for _, session := range slow {
		h.log.Warn("Dropping slow consumer", "session_id", session.ID(), "user_id", session.UserID())
		h.Detach(session)
		session.CloseWithReason("slow consumer")
	}
}

func (h *Hub) leaveLocked(chatID uuid.UUID, sessionID string) {
	room := h.rooms[chatID]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(h.rooms, chatID)
	}
	if memberships, ok := h.sessionRooms[sessionID]; ok {
		delete(memberships, chatID)
	}
}

// Close terminates every tracked session. Called on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]Session, 0, len(h.sessions))
	for _, session := range h.sessions {
		sessions = append(sessions, session)
	}
	h.sessions = make(map[string]Session)
	h.rooms = make(map[uuid.UUID]map[string]Session)
	h.sessionRooms = make(map[string]map[uuid.UUID]struct{})
	h.mu.Unlock()

	for _, session := range sessions {
		session.CloseWithReason("server shutdown")
	}
}
