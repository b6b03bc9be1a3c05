package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campus_connect/internal/domain"
	apperrors "campus_connect/pkg/errors"
	"campus_connect/pkg/logger"
)

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListForChat(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]*domain.Message, int, error)
	ListFilesForChat(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]*domain.Message, int, error)
	ListAttachmentsForChat(ctx context.Context, chatID uuid.UUID) ([]domain.Attachment, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAllForChat(ctx context.Context, chatID uuid.UUID) (int64, error)
	NewestForChat(ctx context.Context, chatID uuid.UUID) (*domain.Message, error)
	MarkChatRead(ctx context.Context, chatID, userID uuid.UUID) (int64, error)
	MarkMessagesRead(ctx context.Context, messageIDs []uuid.UUID, userID uuid.UUID) error
	GetReadBy(ctx context.Context, messageID uuid.UUID) ([]uuid.UUID, error)
	ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error)
	GetReactions(ctx context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]domain.Reaction, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

// Create persists the message, seeds its read set with the sender and
// advances the chat's last-message pointer, all in one transaction. The
// row lock taken by the chats UPDATE serializes sends within a chat, so
// pointer order always matches persistence order.
func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO messages (id, chat_id, sender_id, content, file_url, file_id, file_kind, file_name,
		                      reply_to_id, edited, pinned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	var fileURL, fileID, fileKind, fileName *string
	if message.File != nil {
		fileURL, fileID = &message.File.URL, &message.File.PublicID
		fileKind, fileName = &message.File.Kind, &message.File.Name
	}

	_, err = tx.Exec(ctx, query,
		message.ID, message.ChatID, message.SenderID, message.Content,
		fileURL, fileID, fileKind, fileName,
		message.ReplyToID, message.Edited, message.Pinned, message.CreatedAt, message.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create message", "error", err)
		return err
	}

	readQuery := `INSERT INTO message_reads (message_id, user_id, read_at) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, readQuery, message.ID, message.SenderID, message.CreatedAt); err != nil {
		r.log.Error("Failed to seed read receipt", "error", err)
		return err
	}

	pointerQuery := `UPDATE chats SET last_message_id = $2, last_activity_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := tx.Exec(ctx, pointerQuery, message.ChatID, message.ID, message.CreatedAt); err != nil {
		r.log.Error("Failed to advance last-message pointer", "error", err)
		return err
	}

	return tx.Commit(ctx)
}

const messageColumns = `id, chat_id, sender_id, content, file_url, file_id, file_kind, file_name,
	reply_to_id, edited, pinned, created_at, updated_at`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	message := &domain.Message{}
	var fileURL, fileID, fileKind, fileName *string
	err := row.Scan(
		&message.ID, &message.ChatID, &message.SenderID, &message.Content,
		&fileURL, &fileID, &fileKind, &fileName,
		&message.ReplyToID, &message.Edited, &message.Pinned, &message.CreatedAt, &message.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMessageNotFound
		}
		return nil, err
	}
	if fileURL != nil {
		message.File = &domain.Attachment{URL: *fileURL}
		if fileID != nil {
			message.File.PublicID = *fileID
		}
		if fileKind != nil {
			message.File.Kind = *fileKind
		}
		if fileName != nil {
			message.File.Name = *fileName
		}
	}
	return message, nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	return scanMessage(r.db.QueryRow(ctx, query, id))
}

func (r *messageRepository) listPage(ctx context.Context, chatID uuid.UUID, limit, offset int, filesOnly bool) ([]*domain.Message, int, error) {
	filter := ``
	if filesOnly {
		filter = ` AND file_url IS NOT NULL`
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM messages WHERE chat_id = $1` + filter
	if err := r.db.QueryRow(ctx, countQuery, chatID).Scan(&total); err != nil {
		r.log.Error("Failed to count messages", "error", err)
		return nil, 0, err
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id = $1` + filter + `
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, chatID, limit, offset)
	if err != nil {
		r.log.Error("Failed to list messages", "error", err)
		return nil, 0, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, message)
	}

	return messages, total, rows.Err()
}

// ListForChat returns the requested page newest-first; callers re-order
// to chronological before handing the page to clients.
func (r *messageRepository) ListForChat(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]*domain.Message, int, error) {
	return r.listPage(ctx, chatID, limit, offset, false)
}

func (r *messageRepository) ListFilesForChat(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]*domain.Message, int, error) {
	return r.listPage(ctx, chatID, limit, offset, true)
}

func (r *messageRepository) ListAttachmentsForChat(ctx context.Context, chatID uuid.UUID) ([]domain.Attachment, error) {
	query := `
		SELECT file_url, file_id, file_kind, file_name
		FROM messages
		WHERE chat_id = $1 AND file_url IS NOT NULL
	`
	rows, err := r.db.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		var publicID, kind, name *string
		if err := rows.Scan(&a.URL, &publicID, &kind, &name); err != nil {
			return nil, err
		}
		if publicID != nil {
			a.PublicID = *publicID
		}
		if kind != nil {
			a.Kind = *kind
		}
		if name != nil {
			a.Name = *name
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

func (r *messageRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string) error {
	query := `UPDATE messages SET content = $2, edited = TRUE, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, content, time.Now())
	if err != nil {
		r.log.Error("Failed to update message", "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrMessageNotFound
	}
	return nil
}

// Delete removes the message together with its reactions, read receipts
// and reports. Replies pointing at it are detached first so the row can
// go; they survive as ordinary messages.
func (r *messageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	steps := []string{
		`DELETE FROM message_reactions WHERE message_id = $1`,
		`DELETE FROM message_reads WHERE message_id = $1`,
		`DELETE FROM message_reports WHERE message_id = $1`,
		`UPDATE messages SET reply_to_id = NULL WHERE reply_to_id = $1`,
		`UPDATE chats SET last_message_id = NULL WHERE last_message_id = $1`,
		`DELETE FROM messages WHERE id = $1`,
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, step, id); err != nil {
			r.log.Error("Failed to delete message", "error", err)
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *messageRepository) DeleteAllForChat(ctx context.Context, chatID uuid.UUID) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	steps := []string{
		`DELETE FROM message_reactions WHERE message_id IN (SELECT id FROM messages WHERE chat_id = $1)`,
		`DELETE FROM message_reads WHERE message_id IN (SELECT id FROM messages WHERE chat_id = $1)`,
		`DELETE FROM message_reports WHERE message_id IN (SELECT id FROM messages WHERE chat_id = $1)`,
		`UPDATE chats SET last_message_id = NULL WHERE id = $1`,
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, step, chatID); err != nil {
			r.log.Error("Failed to cascade chat messages", "error", err)
			return 0, err
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM messages WHERE chat_id = $1`, chatID)
	if err != nil {
		r.log.Error("Failed to delete chat messages", "error", err)
		return 0, err
	}

	return tag.RowsAffected(), tx.Commit(ctx)
}

func (r *messageRepository) NewestForChat(ctx context.Context, chatID uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id = $1 ORDER BY created_at DESC LIMIT 1`
	return scanMessage(r.db.QueryRow(ctx, query, chatID))
}

// MarkChatRead adds the reader to every message in the chat it has not
// read yet. ON CONFLICT DO NOTHING keeps the operation idempotent and
// the read set monotonic.
func (r *messageRepository) MarkChatRead(ctx context.Context, chatID, userID uuid.UUID) (int64, error) {
	query := `
		INSERT INTO message_reads (message_id, user_id, read_at)
		SELECT id, $2, $3 FROM messages WHERE chat_id = $1
		ON CONFLICT (message_id, user_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, chatID, userID, time.Now())
	if err != nil {
		r.log.Error("Failed to mark chat read", "error", err)
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *messageRepository) MarkMessagesRead(ctx context.Context, messageIDs []uuid.UUID, userID uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO message_reads (message_id, user_id, read_at)
		SELECT unnest($1::uuid[]), $2, $3
		ON CONFLICT (message_id, user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, messageIDs, userID, time.Now())
	if err != nil {
		r.log.Error("Failed to mark messages read", "error", err)
	}
	return err
}

func (r *messageRepository) GetReadBy(ctx context.Context, messageID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT user_id FROM message_reads WHERE message_id = $1 ORDER BY read_at`
	rows, err := r.db.Query(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ToggleReaction adds the (emoji, user) reaction if absent, removes it if
// present. Returns true when the reaction was added.
func (r *messageRepository) ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error) {
	insert := `
		INSERT INTO message_reactions (message_id, user_id, emoji, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, insert, messageID, userID, emoji, time.Now())
	if err != nil {
		r.log.Error("Failed to add reaction", "error", err)
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	remove := `DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`
	if _, err := r.db.Exec(ctx, remove, messageID, userID, emoji); err != nil {
		r.log.Error("Failed to remove reaction", "error", err)
		return false, err
	}
	return false, nil
}

func (r *messageRepository) GetReactions(ctx context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]domain.Reaction, error) {
	result := make(map[uuid.UUID][]domain.Reaction, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id = ANY($1::uuid[])
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var reaction domain.Reaction
		if err := rows.Scan(&reaction.MessageID, &reaction.UserID, &reaction.Emoji, &reaction.CreatedAt); err != nil {
			return nil, err
		}
		result[reaction.MessageID] = append(result[reaction.MessageID], reaction)
	}
	return result, rows.Err()
}
