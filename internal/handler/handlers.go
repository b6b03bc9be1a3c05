package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"campus_connect/internal/domain"
	"campus_connect/internal/hub"
	"campus_connect/internal/middleware"
	"campus_connect/internal/service"
	"campus_connect/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Chat      *ChatHandler
	Message   *MessageHandler
	Lifecycle *LifecycleHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, router *hub.Hub, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(),
		Chat:      NewChatHandler(services.Chat, log),
		Message:   NewMessageHandler(services.Message, log),
		Lifecycle: NewLifecycleHandler(services.Chat, log),
		WebSocket: NewWebSocketHandler(services.Auth, services.Message, router, log),
	}
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	return id, ok
}

func currentCapabilities(c *gin.Context) (caps domain.Capabilities) {
	if value, exists := c.Get(middleware.ContextCapabilitiesKey); exists {
		if resolved, ok := value.(domain.Capabilities); ok {
			return resolved
		}
	}
	return caps
}
