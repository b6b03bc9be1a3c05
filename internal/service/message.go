package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"campus_connect/internal/domain"
	"campus_connect/internal/hub"
	"campus_connect/internal/repository"
	apperrors "campus_connect/pkg/errors"
	"campus_connect/pkg/logger"
)

// MessageService is the message store and the single delivery path both
// transports use. The REST handlers and the socket event loop call the
// same methods, so validation, persistence and broadcast can never drift
// between the two.
type MessageService interface {
	Send(ctx context.Context, input SendMessageInput) (*domain.Message, error)
	Edit(ctx context.Context, messageID, requesterID uuid.UUID, newContent string) (*domain.Message, error)
	Delete(ctx context.Context, messageID, requesterID uuid.UUID, caps domain.Capabilities) error
	MarkRead(ctx context.Context, chatID, readerID uuid.UUID) (int64, error)
	ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*domain.Message, error)
	ListForChat(ctx context.Context, chatID, requesterID uuid.UUID, page, limit int) ([]*domain.Message, int, error)
	ListFilesForChat(ctx context.Context, chatID, requesterID uuid.UUID, page, limit int) ([]*domain.Message, int, error)
	Report(ctx context.Context, messageID, reporterID uuid.UUID, reason string) error
}

type SendMessageInput struct {
	ChatID   uuid.UUID
	SenderID uuid.UUID
	Content  *string
	// FileData carries raw bytes for the REST multipart path; the
	// service uploads them to the media host before persisting.
	FileData []byte
	FileName string
	FileKind string
	// File carries an already-hosted attachment (socket path, where the
	// client uploaded via the files endpoint first).
	File      *domain.Attachment
	ReplyToID *uuid.UUID
}

type messageService struct {
	messageRepo repository.MessageRepository
	chatRepo    repository.ChatRepository
	userRepo    repository.UserRepository
	reportRepo  repository.ReportRepository
	media       MediaService
	moderation  ModerationService
	audit       AuditService
	broadcaster Broadcaster
	log         logger.Logger

	now func() time.Time
}

func NewMessageService(
	repos *repository.Repositories,
	media MediaService,
	moderation ModerationService,
	audit AuditService,
	broadcaster Broadcaster,
	log logger.Logger,
) MessageService {
	return &messageService{
		messageRepo: repos.Message,
		chatRepo:    repos.Chat,
		userRepo:    repos.User,
		reportRepo:  repos.Report,
		media:       media,
		moderation:  moderation,
		audit:       audit,
		broadcaster: broadcaster,
		log:         log,
		now:         time.Now,
	}
}

func (s *messageService) Send(ctx context.Context, input SendMessageInput) (*domain.Message, error) {
	content := normalizeContent(input.Content)
	hasFile := input.File != nil || len(input.FileData) > 0
	if content == nil && !hasFile {
		return nil, apperrors.ErrEmptyMessage
	}

	chat, err := s.chatRepo.GetByID(ctx, input.ChatID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, chat.ID, input.SenderID); err != nil {
		return nil, err
	}

	if input.ReplyToID != nil {
		target, err := s.messageRepo.GetByID(ctx, *input.ReplyToID)
		if err != nil {
			if errors.Is(err, apperrors.ErrMessageNotFound) {
				return nil, apperrors.NewAPIError("reply target does not exist", 400)
			}
			return nil, err
		}
		if target.ChatID != chat.ID {
			return nil, apperrors.NewAPIError("reply target belongs to another chat", 400)
		}
	}

	if content != nil {
		result, err := s.moderation.CheckText(ctx, *content)
		if err != nil {
			return nil, err
		}
		if !result.Safe {
			s.auditRejection(ctx, input.SenderID, chat.ID, "text", result)
			return nil, moderationError(result)
		}
	}

	file := input.File
	if file == nil && len(input.FileData) > 0 {
		file, err = s.media.Upload(ctx, input.FileData, input.FileName, input.FileKind)
		if err != nil {
			return nil, err
		}
	}

	// Image moderation runs after upload, before persistence. A rejected
	// image's hosted copy is released immediately.
	if file != nil && file.Kind == domain.AttachmentKindImage {
		result, err := s.moderation.CheckImage(ctx, file.URL)
		if err != nil {
			s.cleanupUpload(ctx, file)
			return nil, err
		}
		if !result.Safe {
			s.cleanupUpload(ctx, file)
			s.auditRejection(ctx, input.SenderID, chat.ID, "image", result)
			return nil, moderationError(result)
		}
	}

	now := s.now()
	message := &domain.Message{
		ID:        uuid.New(),
		ChatID:    chat.ID,
		SenderID:  input.SenderID,
		Content:   content,
		File:      file,
		ReplyToID: input.ReplyToID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}
	message.ReadBy = []uuid.UUID{input.SenderID}

	if err := s.resolveMessage(ctx, message); err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast(chat.ID, hub.EventNewMessage, message)
	return message, nil
}

func (s *messageService) Edit(ctx context.Context, messageID, requesterID uuid.UUID, newContent string) (*domain.Message, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil, apperrors.NewAPIError("edited content must not be empty", 400)
	}

	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != requesterID {
		return nil, apperrors.ErrForbidden
	}
	if s.now().Sub(message.CreatedAt) > domain.EditWindow {
		return nil, apperrors.ErrEditWindowClosed
	}

	result, err := s.moderation.CheckText(ctx, newContent)
	if err != nil {
		return nil, err
	}
	if !result.Safe {
		s.auditRejection(ctx, requesterID, message.ChatID, "edit", result)
		return nil, moderationError(result)
	}

	if err := s.messageRepo.UpdateContent(ctx, messageID, newContent); err != nil {
		return nil, err
	}
	message.Content = &newContent
	message.Edited = true
	message.UpdatedAt = s.now()

	if err := s.resolveMessage(ctx, message); err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast(message.ChatID, hub.EventMessageUpdated, message)
	return message, nil
}

// Delete is permitted for the sender, or for a group admin when the
// message lives in that group's bound chat. The hosted file is released
// best-effort; a media-host failure never blocks the delete.
func (s *messageService) Delete(ctx context.Context, messageID, requesterID uuid.UUID, caps domain.Capabilities) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	chat, err := s.chatRepo.GetByID(ctx, message.ChatID)
	if err != nil {
		return err
	}

	allowed := message.SenderID == requesterID
	if !allowed && chat.GroupID != nil && caps.IsGroupAdmin(*chat.GroupID) {
		allowed = true
	}
	if !allowed {
		return apperrors.ErrForbidden
	}

	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		return err
	}

	// The hosted file is released only after the row is gone: a failed
	// delete must not leave a message whose attachment no longer exists.
	if message.File != nil && message.File.PublicID != "" {
		if err := s.media.Destroy(ctx, message.File.PublicID); err != nil {
			s.log.Warn("Failed to destroy hosted file", "public_id", message.File.PublicID, "error", err)
		}
	}

	// The chat's last-message pointer is recomputed to the newest
	// remaining message rather than left dangling.
	if chat.LastMessageID != nil && *chat.LastMessageID == messageID {
		newest, err := s.messageRepo.NewestForChat(ctx, chat.ID)
		switch {
		case err == nil:
			err = s.chatRepo.SetLastMessage(ctx, chat.ID, &newest.ID, newest.CreatedAt)
		case errors.Is(err, apperrors.ErrMessageNotFound):
			err = s.chatRepo.SetLastMessage(ctx, chat.ID, nil, chat.LastActivityAt)
		}
		if err != nil {
			s.log.Error("Failed to recompute last message", "chat_id", chat.ID, "error", err)
		}
	}

	_ = s.audit.LogEvent(ctx, &requesterID, &chat.ID, domain.EventTypeMessageDeleted, map[string]any{
		"message_id": messageID.String(),
		"sender_id":  message.SenderID.String(),
	})

	s.broadcaster.Broadcast(chat.ID, hub.EventMessageDeleted, map[string]any{
		"message_id": messageID,
	})
	return nil
}

// MarkRead is idempotent and monotonic: readers accrete, never retract.
func (s *messageService) MarkRead(ctx context.Context, chatID, readerID uuid.UUID) (int64, error) {
	if err := s.requireParticipant(ctx, chatID, readerID); err != nil {
		return 0, err
	}

	count, err := s.messageRepo.MarkChatRead(ctx, chatID, readerID)
	if err != nil {
		return 0, err
	}

	// Read-state changes get their own event; clients must not confuse
	// them with content edits.
	s.broadcaster.Broadcast(chatID, hub.EventChatMessagesUpdated, map[string]any{
		"chat_id":   chatID,
		"reader_id": readerID,
	})
	return count, nil
}

func (s *messageService) ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (*domain.Message, error) {
	if !domain.IsAllowedReaction(emoji) {
		return nil, apperrors.NewAPIError("unsupported reaction", 400)
	}

	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, message.ChatID, userID); err != nil {
		return nil, err
	}

	if _, err := s.messageRepo.ToggleReaction(ctx, messageID, userID, emoji); err != nil {
		return nil, err
	}

	if err := s.resolveMessage(ctx, message); err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast(message.ChatID, hub.EventMessageUpdated, message)
	return message, nil
}

// ListForChat returns one page, newest page first but in chronological
// order inside the page, and marks the returned messages read by the
// requester as a side effect.
func (s *messageService) ListForChat(ctx context.Context, chatID, requesterID uuid.UUID, page, limit int) ([]*domain.Message, int, error) {
	if err := s.requireParticipant(ctx, chatID, requesterID); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	messages, total, err := s.messageRepo.ListForChat(ctx, chatID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	// Repository returns newest-first; clients want oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	ids := make([]uuid.UUID, len(messages))
	for i, message := range messages {
		ids[i] = message.ID
	}
	if err := s.messageRepo.MarkMessagesRead(ctx, ids, requesterID); err != nil {
		s.log.Warn("Failed to mark page read", "chat_id", chatID, "error", err)
	}

	if err := s.resolveMessages(ctx, messages); err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (s *messageService) ListFilesForChat(ctx context.Context, chatID, requesterID uuid.UUID, page, limit int) ([]*domain.Message, int, error) {
	if err := s.requireParticipant(ctx, chatID, requesterID); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	messages, total, err := s.messageRepo.ListFilesForChat(ctx, chatID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if err := s.resolveMessages(ctx, messages); err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (s *messageService) Report(ctx context.Context, messageID, reporterID uuid.UUID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperrors.NewAPIError("report reason is required", 400)
	}

	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.requireParticipant(ctx, message.ChatID, reporterID); err != nil {
		return err
	}

	if err := s.reportRepo.Create(ctx, &domain.MessageReport{
		ID:         uuid.New(),
		MessageID:  messageID,
		ReporterID: reporterID,
		Reason:     reason,
		CreatedAt:  s.now(),
	}); err != nil {
		return err
	}

	_ = s.audit.LogEvent(ctx, &reporterID, &message.ChatID, domain.EventTypeMessageReported, map[string]any{
		"message_id": messageID.String(),
		"reason":     reason,
	})
	return nil
}

func (s *messageService) requireParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	member, err := s.chatRepo.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !member {
		return apperrors.ErrNotParticipant
	}
	return nil
}

func (s *messageService) auditRejection(ctx context.Context, actorID, chatID uuid.UUID, kind string, result *ModerationResult) {
	_ = s.audit.LogEvent(ctx, &actorID, &chatID, domain.EventTypeContentRejected, map[string]any{
		"kind":    kind,
		"details": result.Details,
	})
}

func (s *messageService) cleanupUpload(ctx context.Context, file *domain.Attachment) {
	if file.PublicID == "" {
		return
	}
	if err := s.media.Destroy(ctx, file.PublicID); err != nil {
		s.log.Warn("Failed to clean up rejected upload", "public_id", file.PublicID, "error", err)
	}
}

func (s *messageService) resolveMessage(ctx context.Context, message *domain.Message) error {
	return s.resolveMessages(ctx, []*domain.Message{message})
}

// resolveMessages attaches display info: senders, reply summaries,
// reactions and read sets.
func (s *messageService) resolveMessages(ctx context.Context, messages []*domain.Message) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(messages))
	senderIDs := make([]uuid.UUID, 0, len(messages))
	seen := make(map[uuid.UUID]struct{})
	for _, message := range messages {
		ids = append(ids, message.ID)
		if _, ok := seen[message.SenderID]; !ok {
			seen[message.SenderID] = struct{}{}
			senderIDs = append(senderIDs, message.SenderID)
		}
	}

	users, err := s.userRepo.GetByIDs(ctx, senderIDs)
	if err != nil {
		return err
	}
	reactions, err := s.messageRepo.GetReactions(ctx, ids)
	if err != nil {
		return err
	}

	for _, message := range messages {
		message.Sender = users[message.SenderID]
		message.Reactions = reactions[message.ID]

		readBy, err := s.messageRepo.GetReadBy(ctx, message.ID)
		if err != nil {
			return err
		}
		message.ReadBy = readBy

		if message.ReplyToID != nil && message.ReplyTo == nil {
			target, err := s.messageRepo.GetByID(ctx, *message.ReplyToID)
			if err == nil {
				if sender, ok := users[target.SenderID]; ok {
					target.Sender = sender
				}
				message.ReplyTo = target
			} else if !errors.Is(err, apperrors.ErrMessageNotFound) {
				return err
			}
		}
	}
	return nil
}

func normalizeContent(content *string) *string {
	if content == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*content)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func moderationError(result *ModerationResult) error {
	message := "content rejected by moderation"
	if result.Details != "" {
		message += ": " + result.Details
	}
	return apperrors.NewAPIError(message, 400)
}
