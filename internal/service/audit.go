package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"campus_connect/internal/domain"
	"campus_connect/internal/repository"
	"campus_connect/pkg/logger"
)

type AuditService interface {
	LogEvent(ctx context.Context, actorUserID *uuid.UUID, chatID *uuid.UUID, eventType string, payload map[string]any) error
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actorUserID *uuid.UUID, chatID *uuid.UUID, eventType string, payload map[string]any) error {
	if payload == nil {
		payload = make(map[string]any)
	}

	auditLog := &domain.AuditLog{
		EventTime:   time.Now(),
		ActorUserID: actorUserID,
		ChatID:      chatID,
		EventType:   eventType,
		Payload:     payload,
	}

	if err := s.auditRepo.CreateLog(ctx, auditLog); err != nil {
		// Auditing never blocks the action that triggered it.
		s.log.Warn("Audit write failed", "event_type", eventType, "error", err)
		return err
	}
	return nil
}
