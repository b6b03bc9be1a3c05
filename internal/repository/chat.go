package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"campus_connect/internal/domain"
	apperrors "campus_connect/pkg/errors"
	"campus_connect/pkg/logger"
)

const pgUniqueViolation = "23505"

type ChatRepository interface {
	CreateOneOnOne(ctx context.Context, chat *domain.Chat, a, b uuid.UUID) error
	CreateBoundTx(ctx context.Context, tx pgx.Tx, chat *domain.Chat, participants []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Chat, error)
	GetByPairKey(ctx context.Context, pairKey string) (*domain.Chat, error)
	GetByParent(ctx context.Context, kind domain.ParentKind, parentID uuid.UUID) (*domain.Chat, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Chat, int, error)
	IsParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
	GetParticipantIDs(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)
	AddParticipant(ctx context.Context, chatID, userID uuid.UUID) error
	RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error
	SetLastMessage(ctx context.Context, chatID uuid.UUID, messageID *uuid.UUID, at time.Time) error
	Delete(ctx context.Context, chatID uuid.UUID) error
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

type chatRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewChatRepository(db *pgxpool.Pool, log logger.Logger) ChatRepository {
	return &chatRepository{db: db, log: log}
}

func (r *chatRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// CreateOneOnOne inserts the chat and both participant rows in one
// transaction. A unique violation on pair_key means another call won the
// race; the caller re-queries on ErrConflict.
func (r *chatRepository) CreateOneOnOne(ctx context.Context, chat *domain.Chat, a, b uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO chats (id, chat_type, pair_key, last_activity_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.Exec(ctx, query,
		chat.ID, chat.ChatType, chat.PairKey, chat.LastActivityAt, chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		r.log.Error("Failed to create one-on-one chat", "error", err)
		return err
	}

	for _, userID := range []uuid.UUID{a, b} {
		if err := addParticipantTx(ctx, tx, chat.ID, userID); err != nil {
			r.log.Error("Failed to add chat participant", "error", err)
			return err
		}
	}

	return tx.Commit(ctx)
}

// CreateBoundTx runs on a caller-supplied transaction so the bound chat
// commits or rolls back together with its parent group/event.
func (r *chatRepository) CreateBoundTx(ctx context.Context, tx pgx.Tx, chat *domain.Chat, participants []uuid.UUID) error {
	query := `
		INSERT INTO chats (id, chat_type, group_id, event_id, last_activity_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		chat.ID, chat.ChatType, chat.GroupID, chat.EventID, chat.LastActivityAt, chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		r.log.Error("Failed to create bound chat", "error", err)
		return err
	}

	for _, userID := range participants {
		if err := addParticipantTx(ctx, tx, chat.ID, userID); err != nil {
			r.log.Error("Failed to add chat participant", "error", err)
			return err
		}
	}

	return nil
}

func addParticipantTx(ctx context.Context, tx pgx.Tx, chatID, userID uuid.UUID) error {
	query := `
		INSERT INTO chat_participants (chat_id, user_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id, user_id) DO NOTHING
	`
	_, err := tx.Exec(ctx, query, chatID, userID, time.Now())
	return err
}

const chatColumns = `id, chat_type, pair_key, group_id, event_id, last_message_id, last_activity_at, created_at, updated_at`

func scanChat(row pgx.Row) (*domain.Chat, error) {
	chat := &domain.Chat{}
	err := row.Scan(
		&chat.ID, &chat.ChatType, &chat.PairKey, &chat.GroupID, &chat.EventID,
		&chat.LastMessageID, &chat.LastActivityAt, &chat.CreatedAt, &chat.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrChatNotFound
		}
		return nil, err
	}
	return chat, nil
}

func (r *chatRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE id = $1`
	return scanChat(r.db.QueryRow(ctx, query, id))
}

func (r *chatRepository) GetByPairKey(ctx context.Context, pairKey string) (*domain.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE chat_type = $1 AND pair_key = $2`
	return scanChat(r.db.QueryRow(ctx, query, domain.ChatTypeOneOnOne, pairKey))
}

func (r *chatRepository) GetByParent(ctx context.Context, kind domain.ParentKind, parentID uuid.UUID) (*domain.Chat, error) {
	column := "group_id"
	if kind == domain.ParentKindEvent {
		column = "event_id"
	}
	query := `SELECT ` + chatColumns + ` FROM chats WHERE ` + column + ` = $1`
	return scanChat(r.db.QueryRow(ctx, query, parentID))
}

func (r *chatRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Chat, int, error) {
	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM chats c
		JOIN chat_participants cp ON cp.chat_id = c.id
		WHERE cp.user_id = $1
	`
	if err := r.db.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		r.log.Error("Failed to count chats for user", "error", err)
		return nil, 0, err
	}

	query := `
		SELECT c.id, c.chat_type, c.pair_key, c.group_id, c.event_id,
		       c.last_message_id, c.last_activity_at, c.created_at, c.updated_at
		FROM chats c
		JOIN chat_participants cp ON cp.chat_id = c.id
		WHERE cp.user_id = $1
		ORDER BY c.last_activity_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to list chats for user", "error", err)
		return nil, 0, err
	}
	defer rows.Close()

	var chats []*domain.Chat
	for rows.Next() {
		chat := &domain.Chat{}
		err := rows.Scan(
			&chat.ID, &chat.ChatType, &chat.PairKey, &chat.GroupID, &chat.EventID,
			&chat.LastMessageID, &chat.LastActivityAt, &chat.CreatedAt, &chat.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		chats = append(chats, chat)
	}

	return chats, total, rows.Err()
}

func (r *chatRepository) IsParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, chatID, userID).Scan(&exists); err != nil {
		r.log.Error("Failed to check chat membership", "error", err)
		return false, err
	}
	return exists, nil
}

func (r *chatRepository) GetParticipantIDs(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT user_id FROM chat_participants WHERE chat_id = $1 ORDER BY joined_at`
	rows, err := r.db.Query(ctx, query, chatID)
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

// AddParticipant is an atomic set insert; re-adding an existing member is
// a no-op rather than an error.
func (r *chatRepository) AddParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	query := `
		INSERT INTO chat_participants (chat_id, user_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id, user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, chatID, userID, time.Now())
	if err != nil {
		r.log.Error("Failed to add participant", "error", err)
	}
	return err
}

func (r *chatRepository) RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	query := `DELETE FROM chat_participants WHERE chat_id = $1 AND user_id = $2`
	_, err := r.db.Exec(ctx, query, chatID, userID)
	if err != nil {
		r.log.Error("Failed to remove participant", "error", err)
	}
	return err
}

// SetLastMessage repoints the chat's last-message reference, e.g. after
// the previous last message was deleted. The regular send path updates
// the pointer inside the message insert transaction instead.
func (r *chatRepository) SetLastMessage(ctx context.Context, chatID uuid.UUID, messageID *uuid.UUID, at time.Time) error {
	query := `UPDATE chats SET last_message_id = $2, last_activity_at = $3, updated_at = $3 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, chatID, messageID, at)
	if err != nil {
		r.log.Error("Failed to set last message", "error", err)
	}
	return err
}

func (r *chatRepository) Delete(ctx context.Context, chatID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chat_participants WHERE chat_id = $1`, chatID); err != nil {
		r.log.Error("Failed to delete chat participants", "error", err)
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chats WHERE id = $1`, chatID); err != nil {
		r.log.Error("Failed to delete chat", "error", err)
		return err
	}

	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
