package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"campus_connect/internal/domain"
	"campus_connect/pkg/logger"
)

type ReportRepository interface {
	Create(ctx context.Context, report *domain.MessageReport) error
	DeleteForChat(ctx context.Context, chatID uuid.UUID) error
}

type reportRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewReportRepository(db *pgxpool.Pool, log logger.Logger) ReportRepository {
	return &reportRepository{db: db, log: log}
}

func (r *reportRepository) Create(ctx context.Context, report *domain.MessageReport) error {
	query := `
		INSERT INTO message_reports (id, message_id, reporter_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query,
		report.ID, report.MessageID, report.ReporterID, report.Reason, report.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create report", "error", err)
	}
	return err
}

func (r *reportRepository) DeleteForChat(ctx context.Context, chatID uuid.UUID) error {
	query := `
		DELETE FROM message_reports
		WHERE message_id IN (SELECT id FROM messages WHERE chat_id = $1)
	`
	_, err := r.db.Exec(ctx, query, chatID)
	if err != nil {
		r.log.Error("Failed to delete reports for chat", "error", err)
	}
	return err
}
