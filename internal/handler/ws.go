package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"campus_connect/internal/domain"
	"campus_connect/internal/hub"
	"campus_connect/internal/service"
	"campus_connect/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler is the socket transport adapter. It authenticates the
// connection, then translates inbound events into the same service calls
// the REST handlers make.
type WebSocketHandler struct {
	authService    service.AuthService
	messageService service.MessageService
	router         *hub.Hub
	log            logger.Logger
}

func NewWebSocketHandler(
	authService service.AuthService,
	messageService service.MessageService,
	router *hub.Hub,
	log logger.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		authService:    authService,
		messageService: messageService,
		router:         router,
		log:            log,
	}
}

// Handle upgrades the connection. Authentication happens first: a
// connection that fails it is closed before any room operation is
// possible.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "credential required"})
		return
	}

	principal, err := h.authService.ValidateToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired credential"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := hub.NewClient(principal.User.ID, conn, h.router, h.log)
	client.OnEvent(h.dispatch)

	h.router.Attach(client)
	client.Deliver(hub.OutEvent{Type: hub.EventConnected, Payload: gin.H{"user_id": principal.User.ID}})
	client.Run()
}

func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func (h *WebSocketHandler) dispatch(client *hub.Client, event hub.Event) {
	ctx := context.Background()

	switch event.Type {
	case hub.ActionJoinRoom:
		h.handleJoin(ctx, client, event)
	case hub.ActionLeaveRoom:
		if event.ChatID != nil {
			h.router.LeaveRoom(client, *event.ChatID)
		}
	case hub.ActionTyping:
		h.handleTyping(client, event)
	case hub.ActionSendMessage:
		h.handleSend(ctx, client, event)
	default:
		client.SendError("unknown event type: " + event.Type)
	}
}

func (h *WebSocketHandler) handleJoin(ctx context.Context, client *hub.Client, event hub.Event) {
	if event.ChatID == nil {
		client.SendError("joinRoom requires chat_id")
		return
	}

	if err := h.router.JoinRoom(ctx, client, *event.ChatID); err != nil {
		// Scoped to this caller; the connection stays open.
		client.SendError(err.Error())
		return
	}

	client.Deliver(hub.NewOutEvent(hub.EventChatJoined, *event.ChatID, gin.H{"chat_id": *event.ChatID}))
}

type typingPayload struct {
	IsTyping bool `json:"is_typing"`
}

func (h *WebSocketHandler) handleTyping(client *hub.Client, event hub.Event) {
	if event.ChatID == nil {
		client.SendError("typing requires chat_id")
		return
	}

	// Typing bypasses the services, so the room gate is enforced here:
	// only a session that joined (and therefore passed the membership
	// check) may signal into the room.
	if !h.router.InRoom(client, *event.ChatID) {
		client.SendError("join the chat before sending typing updates")
		return
	}

	var payload typingPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			client.SendError("malformed typing payload")
			return
		}
	}

	// Ephemeral: broadcast to the room minus the typist, persist nothing.
	h.router.BroadcastExcept(*event.ChatID, hub.EventTyping, hub.TypingPayload{
		ChatID:   *event.ChatID,
		UserID:   client.UserID(),
		IsTyping: payload.IsTyping,
	}, client.UserID())
}

type sendPayload struct {
	Content *string            `json:"content"`
	File    *domain.Attachment `json:"file"`
	ReplyTo *uuid.UUID         `json:"reply_to"`
}

type sendAck struct {
	Status  string          `json:"status"`
	Message *domain.Message `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (h *WebSocketHandler) handleSend(ctx context.Context, client *hub.Client, event hub.Event) {
	ack := func(a sendAck) {
		client.Deliver(hub.OutEvent{Type: "ack", ChatID: event.ChatID, Payload: a})
	}

	if event.ChatID == nil {
		ack(sendAck{Status: "error", Error: "sendMessage requires chat_id"})
		return
	}

	var payload sendPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			ack(sendAck{Status: "error", Error: "malformed message payload"})
			return
		}
	}

	message, err := h.messageService.Send(ctx, service.SendMessageInput{
		ChatID:    *event.ChatID,
		SenderID:  client.UserID(),
		Content:   payload.Content,
		File:      payload.File,
		ReplyToID: payload.ReplyTo,
	})
	if err != nil {
		ack(sendAck{Status: "error", Error: err.Error()})
		return
	}

	ack(sendAck{Status: "ok", Message: message})
}
