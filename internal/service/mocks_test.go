package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"campus_connect/internal/domain"
	"campus_connect/internal/repository"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) CreateOneOnOne(ctx context.Context, chat *domain.Chat, a, b uuid.UUID) error {
	return m.Called(ctx, chat, a, b).Error(0)
}

func (m *MockChatRepository) CreateBoundTx(ctx context.Context, tx pgx.Tx, chat *domain.Chat, participants []uuid.UUID) error {
	return m.Called(ctx, tx, chat, participants).Error(0)
}

func (m *MockChatRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Chat, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chat), args.Error(1)
}

func (m *MockChatRepository) GetByPairKey(ctx context.Context, pairKey string) (*domain.Chat, error) {
	args := m.Called(ctx, pairKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chat), args.Error(1)
}

func (m *MockChatRepository) GetByParent(ctx context.Context, kind domain.ParentKind, parentID uuid.UUID) (*domain.Chat, error) {
	args := m.Called(ctx, kind, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chat), args.Error(1)
}

func (m *MockChatRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Chat, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Chat), args.Int(1), args.Error(2)
}

func (m *MockChatRepository) IsParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockChatRepository) GetParticipantIDs(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockChatRepository) AddParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	return m.Called(ctx, chatID, userID).Error(0)
}

func (m *MockChatRepository) RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	return m.Called(ctx, chatID, userID).Error(0)
}

func (m *MockChatRepository) SetLastMessage(ctx context.Context, chatID uuid.UUID, messageID *uuid.UUID, at time.Time) error {
	return m.Called(ctx, chatID, messageID, at).Error(0)
}

func (m *MockChatRepository) Delete(ctx context.Context, chatID uuid.UUID) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *MockChatRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	return m.Called(ctx, message).Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) ListForChat(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]*domain.Message, int, error) {
	args := m.Called(ctx, chatID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Message), args.Int(1), args.Error(2)
}

func (m *MockMessageRepository) ListFilesForChat(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]*domain.Message, int, error) {
	args := m.Called(ctx, chatID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Message), args.Int(1), args.Error(2)
}

func (m *MockMessageRepository) ListAttachmentsForChat(ctx context.Context, chatID uuid.UUID) ([]domain.Attachment, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Attachment), args.Error(1)
}

func (m *MockMessageRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string) error {
	return m.Called(ctx, id, content).Error(0)
}

func (m *MockMessageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockMessageRepository) DeleteAllForChat(ctx context.Context, chatID uuid.UUID) (int64, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) NewestForChat(ctx context.Context, chatID uuid.UUID) (*domain.Message, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) MarkChatRead(ctx context.Context, chatID, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) MarkMessagesRead(ctx context.Context, messageIDs []uuid.UUID, userID uuid.UUID) error {
	return m.Called(ctx, messageIDs, userID).Error(0)
}

func (m *MockMessageRepository) GetReadBy(ctx context.Context, messageID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockMessageRepository) ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) GetReactions(ctx context.Context, messageIDs []uuid.UUID) (map[uuid.UUID][]domain.Reaction, error) {
	args := m.Called(ctx, messageIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]domain.Reaction), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*domain.User), args.Error(1)
}

type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Create(ctx context.Context, report *domain.MessageReport) error {
	return m.Called(ctx, report).Error(0)
}

func (m *MockReportRepository) DeleteForChat(ctx context.Context, chatID uuid.UUID) error {
	return m.Called(ctx, chatID).Error(0)
}

type MockMediaService struct {
	mock.Mock
}

func (m *MockMediaService) Upload(ctx context.Context, data []byte, name, kind string) (*domain.Attachment, error) {
	args := m.Called(ctx, data, name, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Attachment), args.Error(1)
}

func (m *MockMediaService) Destroy(ctx context.Context, publicID string) error {
	return m.Called(ctx, publicID).Error(0)
}

type MockModerationService struct {
	mock.Mock
}

func (m *MockModerationService) CheckText(ctx context.Context, text string) (*ModerationResult, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ModerationResult), args.Error(1)
}

func (m *MockModerationService) CheckImage(ctx context.Context, imageURL string) (*ModerationResult, error) {
	args := m.Called(ctx, imageURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ModerationResult), args.Error(1)
}

// recordingAudit captures audit event types for assertion.
type recordingAudit struct {
	eventTypes []string
}

func (a *recordingAudit) LogEvent(_ context.Context, _ *uuid.UUID, _ *uuid.UUID, eventType string, _ map[string]any) error {
	a.eventTypes = append(a.eventTypes, eventType)
	return nil
}

// recordingBroadcaster captures fan-out calls for assertion.
type recordingBroadcaster struct {
	events []broadcastRecord
}

type broadcastRecord struct {
	chatID    uuid.UUID
	eventType string
	payload   any
	exclude   *uuid.UUID
}

func (b *recordingBroadcaster) Broadcast(chatID uuid.UUID, eventType string, payload any) {
	b.events = append(b.events, broadcastRecord{chatID: chatID, eventType: eventType, payload: payload})
}

func (b *recordingBroadcaster) BroadcastExcept(chatID uuid.UUID, eventType string, payload any, exclude uuid.UUID) {
	b.events = append(b.events, broadcastRecord{chatID: chatID, eventType: eventType, payload: payload, exclude: &exclude})
}

func newTestRepos(chat *MockChatRepository, message *MockMessageRepository, user *MockUserRepository, report *MockReportRepository) *repository.Repositories {
	return &repository.Repositories{
		Chat:    chat,
		Message: message,
		User:    user,
		Report:  report,
	}
}
