package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"campus_connect/internal/domain"
	"campus_connect/internal/hub"
	"campus_connect/internal/repository"
	apperrors "campus_connect/pkg/errors"
	"campus_connect/pkg/logger"
)

// ChatService is the chat directory: it owns chat creation, lookup and
// the uniqueness/lifecycle invariants (one chat per one-on-one pair, one
// chat per parent group/event, participant mirroring, cascade delete).
type ChatService interface {
	GetOrCreateOneOnOne(ctx context.Context, requesterID, recipientID uuid.UUID) (*domain.Chat, error)
	CreateBoundChat(ctx context.Context, kind domain.ParentKind, parentID uuid.UUID, participants []uuid.UUID) (*domain.Chat, error)
	CreateBoundChatTx(ctx context.Context, tx pgx.Tx, kind domain.ParentKind, parentID uuid.UUID, participants []uuid.UUID) (*domain.Chat, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]*domain.Chat, int, error)
	GetByID(ctx context.Context, chatID, requesterID uuid.UUID) (*domain.Chat, error)
	AddParticipant(ctx context.Context, kind domain.ParentKind, parentID, userID uuid.UUID) error
	RemoveParticipant(ctx context.Context, kind domain.ParentKind, parentID, userID uuid.UUID) error
	DeleteBoundChat(ctx context.Context, kind domain.ParentKind, parentID uuid.UUID) error
}

type chatService struct {
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	reportRepo  repository.ReportRepository
	media       MediaService
	audit       AuditService
	broadcaster Broadcaster
	log         logger.Logger
}

func NewChatService(
	repos *repository.Repositories,
	media MediaService,
	audit AuditService,
	broadcaster Broadcaster,
	log logger.Logger,
) ChatService {
	return &chatService{
		chatRepo:    repos.Chat,
		messageRepo: repos.Message,
		userRepo:    repos.User,
		reportRepo:  repos.Report,
		media:       media,
		audit:       audit,
		broadcaster: broadcaster,
		log:         log,
	}
}

// GetOrCreateOneOnOne returns the single chat for the pair, creating it
// on first contact. Two concurrent first contacts race on the pair-key
// unique index; the loser sees ErrConflict and re-resolves by lookup, so
// the operation is idempotent from the caller's side.
func (s *chatService) GetOrCreateOneOnOne(ctx context.Context, requesterID, recipientID uuid.UUID) (*domain.Chat, error) {
	if requesterID == recipientID {
		return nil, apperrors.ErrSelfChat
	}
	if _, err := s.userRepo.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrRecipientNotFound
		}
		return nil, err
	}

	pairKey := domain.PairKeyFor(requesterID, recipientID)

	existing, err := s.chatRepo.GetByPairKey(ctx, pairKey)
	if err == nil {
		return s.resolveChat(ctx, existing)
	}
	if !errors.Is(err, apperrors.ErrChatNotFound) {
		return nil, err
	}

	now := time.Now()
	chat := &domain.Chat{
		ID:             uuid.New(),
		ChatType:       domain.ChatTypeOneOnOne,
		PairKey:        &pairKey,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.chatRepo.CreateOneOnOne(ctx, chat, requesterID, recipientID)
	if errors.Is(err, apperrors.ErrConflict) {
		// Lost the creation race; the surviving chat is the answer.
		chat, err = s.chatRepo.GetByPairKey(ctx, pairKey)
	}
	if err != nil {
		return nil, err
	}

	return s.resolveChat(ctx, chat)
}

func (s *chatService) CreateBoundChat(ctx context.Context, kind domain.ParentKind, parentID uuid.UUID, participants []uuid.UUID) (*domain.Chat, error) {
	tx, err := s.chatRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	chat, err := s.CreateBoundChatTx(ctx, tx, kind, parentID, participants)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return chat, nil
}

// CreateBoundChatTx creates the chat on the caller's transaction so it
// commits or rolls back together with the parent group/event.
func (s *chatService) CreateBoundChatTx(ctx context.Context, tx pgx.Tx, kind domain.ParentKind, parentID uuid.UUID, participants []uuid.UUID) (*domain.Chat, error) {
	now := time.Now()
	chat := &domain.Chat{
		ID:             uuid.New(),
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	switch kind {
	case domain.ParentKindGroup:
		chat.ChatType = domain.ChatTypeGroup
		chat.GroupID = &parentID
	case domain.ParentKindEvent:
		chat.ChatType = domain.ChatTypeEventChat
		chat.EventID = &parentID
	default:
		return nil, apperrors.ErrBadRequest
	}

	if err := s.chatRepo.CreateBoundTx(ctx, tx, chat, participants); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *chatService) ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]*domain.Chat, int, error) {
	offset := (page - 1) * limit
	chats, total, err := s.chatRepo.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	for _, chat := range chats {
		if _, err := s.resolveChat(ctx, chat); err != nil {
			return nil, 0, err
		}
	}
	return chats, total, nil
}

func (s *chatService) GetByID(ctx context.Context, chatID, requesterID uuid.UUID) (*domain.Chat, error) {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	member, err := s.chatRepo.IsParticipant(ctx, chatID, requesterID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperrors.ErrNotParticipant
	}

	return s.resolveChat(ctx, chat)
}

// AddParticipant mirrors a parent-entity join into the bound chat and
// tells the room about the new participant set.
func (s *chatService) AddParticipant(ctx context.Context, kind domain.ParentKind, parentID, userID uuid.UUID) error {
	chat, err := s.chatRepo.GetByParent(ctx, kind, parentID)
	if err != nil {
		return err
	}
	if err := s.chatRepo.AddParticipant(ctx, chat.ID, userID); err != nil {
		return err
	}
	return s.broadcastParticipants(ctx, chat.ID)
}

func (s *chatService) RemoveParticipant(ctx context.Context, kind domain.ParentKind, parentID, userID uuid.UUID) error {
	chat, err := s.chatRepo.GetByParent(ctx, kind, parentID)
	if err != nil {
		return err
	}
	if err := s.chatRepo.RemoveParticipant(ctx, chat.ID, userID); err != nil {
		return err
	}
	return s.broadcastParticipants(ctx, chat.ID)
}

func (s *chatService) broadcastParticipants(ctx context.Context, chatID uuid.UUID) error {
	participants, err := s.chatRepo.GetParticipantIDs(ctx, chatID)
	if err != nil {
		return err
	}
	s.broadcaster.Broadcast(chatID, hub.EventChatParticipantsUpdated, map[string]any{
		"chat_id":      chatID,
		"participants": participants,
	})
	return nil
}

// DeleteBoundChat is the cascade saga for a deleted parent group/event:
// release hosted files, drop reports, messages, participants, then the
// chat row. Each step is idempotent, so a crash mid-cascade is safe to
// retry from the top.
func (s *chatService) DeleteBoundChat(ctx context.Context, kind domain.ParentKind, parentID uuid.UUID) error {
	chat, err := s.chatRepo.GetByParent(ctx, kind, parentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrChatNotFound) {
			// Already cascaded (or never existed). Nothing to do.
			return nil
		}
		return err
	}

	attachments, err := s.messageRepo.ListAttachmentsForChat(ctx, chat.ID)
	if err != nil {
		return err
	}
	for _, attachment := range attachments {
		if attachment.PublicID == "" {
			continue
		}
		if err := s.media.Destroy(ctx, attachment.PublicID); err != nil {
			// Best effort: an unreachable media host must not block the cascade.
			s.log.Warn("Failed to destroy hosted file", "public_id", attachment.PublicID, "error", err)
		}
	}

	if err := s.reportRepo.DeleteForChat(ctx, chat.ID); err != nil {
		return err
	}

	deleted, err := s.messageRepo.DeleteAllForChat(ctx, chat.ID)
	if err != nil {
		return err
	}

	if err := s.chatRepo.Delete(ctx, chat.ID); err != nil {
		return err
	}

	_ = s.audit.LogEvent(ctx, nil, &chat.ID, domain.EventTypeChatDeleted, map[string]any{
		"parent_kind":      string(kind),
		"parent_id":        parentID.String(),
		"messages_deleted": deleted,
	})

	s.log.Info("Cascaded bound chat delete",
		"chat_id", chat.ID, "parent_kind", kind, "parent_id", parentID,
		"messages_deleted", deleted, "files_released", len(attachments))
	return nil
}

// resolveChat fills display info: participant users and the last message
// with its sender.
func (s *chatService) resolveChat(ctx context.Context, chat *domain.Chat) (*domain.Chat, error) {
	participantIDs, err := s.chatRepo.GetParticipantIDs(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.GetByIDs(ctx, participantIDs)
	if err != nil {
		return nil, err
	}
	chat.Participants = make([]*domain.User, 0, len(participantIDs))
	for _, id := range participantIDs {
		if user, ok := users[id]; ok {
			chat.Participants = append(chat.Participants, user)
		}
	}

	if chat.LastMessageID != nil {
		message, err := s.messageRepo.GetByID(ctx, *chat.LastMessageID)
		if err == nil {
			if sender, ok := users[message.SenderID]; ok {
				message.Sender = sender
			}
			chat.LastMessage = message
		} else if !errors.Is(err, apperrors.ErrMessageNotFound) {
			return nil, err
		}
	}

	return chat, nil
}
