package service

import (
	"github.com/google/uuid"

	"campus_connect/internal/config"
	"campus_connect/internal/repository"
	"campus_connect/pkg/logger"
)

// Broadcaster is the slice of the room router the services need. The hub
// is constructed explicitly in main and passed down by reference; there
// is no process-wide accessor.
type Broadcaster interface {
	Broadcast(chatID uuid.UUID, eventType string, payload any)
	BroadcastExcept(chatID uuid.UUID, eventType string, payload any, exclude uuid.UUID)
}

type Services struct {
	Auth       AuthService
	Chat       ChatService
	Message    MessageService
	Media      MediaService
	Moderation ModerationService
	Audit      AuditService
	RateLimit  RateLimitService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, broadcaster Broadcaster, log logger.Logger) *Services {
	media := NewMediaService(cfg.Media, log)
	moderation := NewModerationService(cfg.Moderation, log)
	audit := NewAuditService(repos.Audit, log)

	return &Services{
		Auth:       NewAuthService(repos.User, cfg.JWT, log),
		Chat:       NewChatService(repos, media, audit, broadcaster, log),
		Message:    NewMessageService(repos, media, moderation, audit, broadcaster, log),
		Media:      media,
		Moderation: moderation,
		Audit:      audit,
		RateLimit:  NewRateLimitService(repos.RateLimit, log),
	}
}
