package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"campus_connect/internal/domain"
	"campus_connect/internal/hub"
	apperrors "campus_connect/pkg/errors"
	"campus_connect/pkg/logger"
)

var safeResult = &ModerationResult{Safe: true}

type messageFixture struct {
	chatRepo    *MockChatRepository
	messageRepo *MockMessageRepository
	userRepo    *MockUserRepository
	reportRepo  *MockReportRepository
	media       *MockMediaService
	moderation  *MockModerationService
	audit       *recordingAudit
	broadcaster *recordingBroadcaster
	service     *messageService
}

func newMessageFixture() *messageFixture {
	f := &messageFixture{
		chatRepo:    new(MockChatRepository),
		messageRepo: new(MockMessageRepository),
		userRepo:    new(MockUserRepository),
		reportRepo:  new(MockReportRepository),
		media:       new(MockMediaService),
		moderation:  new(MockModerationService),
		audit:       new(recordingAudit),
		broadcaster: new(recordingBroadcaster),
	}
	repos := newTestRepos(f.chatRepo, f.messageRepo, f.userRepo, f.reportRepo)
	svc := NewMessageService(repos, f.media, f.moderation, f.audit, f.broadcaster, logger.NewNop())
	f.service = svc.(*messageService)
	return f
}

func (f *messageFixture) expectMembership(chatID, userID uuid.UUID, member bool) {
	f.chatRepo.On("IsParticipant", mock.Anything, chatID, userID).Return(member, nil)
}

// expectResolve stubs message hydration: sender lookup, reactions, read
// sets.
func (f *messageFixture) expectResolve(senderID uuid.UUID) {
	f.userRepo.On("GetByIDs", mock.Anything, mock.Anything).Return(map[uuid.UUID]*domain.User{
		senderID: {ID: senderID, DisplayName: "sender", IsActive: true},
	}, nil)
	f.messageRepo.On("GetReactions", mock.Anything, mock.Anything).Return(map[uuid.UUID][]domain.Reaction{}, nil)
	f.messageRepo.On("GetReadBy", mock.Anything, mock.Anything).Return([]uuid.UUID{senderID}, nil)
}

func strPtr(s string) *string { return &s }

func TestSendRejectsEmptyMessage(t *testing.T) {
	f := newMessageFixture()

	cases := map[string]*string{
		"nil content":        nil,
		"empty string":       strPtr(""),
		"whitespace content": strPtr("   \n\t "),
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.Send(context.Background(), SendMessageInput{
				ChatID:   uuid.New(),
				SenderID: uuid.New(),
				Content:  content,
			})
			assert.ErrorIs(t, err, apperrors.ErrEmptyMessage)
		})
	}
}

func TestSendRejectsNonParticipant(t *testing.T) {
	f := newMessageFixture()
	chatID, senderID := uuid.New(), uuid.New()

	f.chatRepo.On("GetByID", mock.Anything, chatID).Return(&domain.Chat{ID: chatID}, nil)
	f.expectMembership(chatID, senderID, false)

	_, err := f.service.Send(context.Background(), SendMessageInput{
		ChatID:   chatID,
		SenderID: senderID,
		Content:  strPtr("hello"),
	})
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
	f.messageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendRejectsCrossChatReply(t *testing.T) {
	f := newMessageFixture()
	chatID, senderID, replyToID := uuid.New(), uuid.New(), uuid.New()

	f.chatRepo.On("GetByID", mock.Anything, chatID).Return(&domain.Chat{ID: chatID}, nil)
	f.expectMembership(chatID, senderID, true)
	f.messageRepo.On("GetByID", mock.Anything, replyToID).Return(&domain.Message{
		ID:     replyToID,
		ChatID: uuid.New(), // different chat
	}, nil)

	_, err := f.service.Send(context.Background(), SendMessageInput{
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   strPtr("hello"),
		ReplyToID: &replyToID,
	})
	require.Error(t, err)
	assert.Equal(t, 400, apperrors.HTTPStatusFromError(err))
	f.messageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendPersistsSeedsReadSetAndBroadcasts(t *testing.T) {
	f := newMessageFixture()
	chatID, senderID := uuid.New(), uuid.New()

	f.chatRepo.On("GetByID", mock.Anything, chatID).Return(&domain.Chat{ID: chatID}, nil)
	f.expectMembership(chatID, senderID, true)
	f.moderation.On("CheckText", mock.Anything, "hello").Return(safeResult, nil)
	f.messageRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.expectResolve(senderID)

	message, err := f.service.Send(context.Background(), SendMessageInput{
		ChatID:   chatID,
		SenderID: senderID,
		Content:  strPtr("  hello  "),
	})
	require.NoError(t, err)
	require.NotNil(t, message.Content)
	assert.Equal(t, "hello", *message.Content)
	assert.Equal(t, []uuid.UUID{senderID}, message.ReadBy)
	require.NotNil(t, message.Sender)

	require.Len(t, f.broadcaster.events, 1)
	assert.Equal(t, hub.EventNewMessage, f.broadcaster.events[0].eventType)
	assert.Equal(t, chatID, f.broadcaster.events[0].chatID)
}

func TestSendRejectedTextIsNeverPersisted(t *testing.T) {
	f := newMessageFixture()
	chatID, senderID := uuid.New(), uuid.New()

	f.chatRepo.On("GetByID", mock.Anything, chatID).Return(&domain.Chat{ID: chatID}, nil)
	f.expectMembership(chatID, senderID, true)
	f.moderation.On("CheckText", mock.Anything, "offensive").Return(&ModerationResult{Safe: false, Details: "profanity"}, nil)

	_, err := f.service.Send(context.Background(), SendMessageInput{
		ChatID:   chatID,
		SenderID: senderID,
		Content:  strPtr("offensive"),
	})
	require.Error(t, err)
	assert.Equal(t, 400, apperrors.HTTPStatusFromError(err))
	f.messageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Contains(t, f.audit.eventTypes, domain.EventTypeContentRejected)
	assert.Empty(t, f.broadcaster.events)
}

func TestSendRejectedImageReleasesUpload(t *testing.T) {
	f := newMessageFixture()
	chatID, senderID := uuid.New(), uuid.New()
	uploaded := &domain.Attachment{
		URL:      "https://media.test/bad.png",
		PublicID: "media/bad",
		Kind:     domain.AttachmentKindImage,
		Name:     "bad.png",
	}

	f.chatRepo.On("GetByID", mock.Anything, chatID).Return(&domain.Chat{ID: chatID}, nil)
	f.expectMembership(chatID, senderID, true)
	f.media.On("Upload", mock.Anything, mock.Anything, "bad.png", domain.AttachmentKindImage).Return(uploaded, nil)
	f.moderation.On("CheckImage", mock.Anything, uploaded.URL).Return(&ModerationResult{Safe: false, Details: "nsfw"}, nil)
	f.media.On("Destroy", mock.Anything, "media/bad").Return(nil)

	_, err := f.service.Send(context.Background(), SendMessageInput{
		ChatID:   chatID,
		SenderID: senderID,
		FileData: []byte{0x89, 0x50},
		FileName: "bad.png",
		FileKind: domain.AttachmentKindImage,
	})
	require.Error(t, err)
	f.media.AssertCalled(t, "Destroy", mock.Anything, "media/bad")
	f.messageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEditAllowsOnlySenderInsideWindow(t *testing.T) {
	f := newMessageFixture()
	messageID, senderID := uuid.New(), uuid.New()
	sentAt := time.Now()
	f.service.now = func() time.Time { return sentAt.Add(14 * time.Minute) }

	message := &domain.Message{ID: messageID, ChatID: uuid.New(), SenderID: senderID, Content: strPtr("old"), CreatedAt: sentAt}
	f.messageRepo.On("GetByID", mock.Anything, messageID).Return(message, nil)
	f.moderation.On("CheckText", mock.Anything, "new").Return(safeResult, nil)
	f.messageRepo.On("UpdateContent", mock.Anything, messageID, "new").Return(nil)
	f.expectResolve(senderID)

	edited, err := f.service.Edit(context.Background(), messageID, senderID, "new")
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.Equal(t, "new", *edited.Content)
	assert.Equal(t, sentAt.Add(14*time.Minute), edited.UpdatedAt)

	require.Len(t, f.broadcaster.events, 1)
	assert.Equal(t, hub.EventMessageUpdated, f.broadcaster.events[0].eventType)
}

func TestEditRejectsNonSender(t *testing.T) {
	f := newMessageFixture()
	messageID := uuid.New()

	f.messageRepo.On("GetByID", mock.Anything, messageID).Return(&domain.Message{
		ID: messageID, ChatID: uuid.New(), SenderID: uuid.New(), CreatedAt: time.Now(),
	}, nil)

	_, err := f.service.Edit(context.Background(), messageID, uuid.New(), "new")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestEditWindowCloses(t *testing.T) {
	f := newMessageFixture()
	messageID, senderID := uuid.New(), uuid.New()
	sentAt := time.Now()
	f.service.now = func() time.Time { return sentAt.Add(domain.EditWindow + time.Second) }

	f.messageRepo.On("GetByID", mock.Anything, messageID).Return(&domain.Message{
		ID: messageID, ChatID: uuid.New(), SenderID: senderID, CreatedAt: sentAt,
	}, nil)

	_, err := f.service.Edit(context.Background(), messageID, senderID, "new")
	assert.ErrorIs(t, err, apperrors.ErrEditWindowClosed)
	f.messageRepo.AssertNotCalled(t, "UpdateContent", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteBySenderRecomputesLastMessagePointer(t *testing.T) {
	f := newMessageFixture()
	chatID, senderID, messageID := uuid.New(), uuid.New(), uuid.New()
	remaining := &domain.Message{ID: uuid.New(), ChatID: chatID, CreatedAt: time.Now().Add(-time.Minute)}

	f.messageRepo.On("GetByID", mock.Anything, messageID).Return(&domain.Message{
		ID: messageID, ChatID: chatID, SenderID: senderID,
	}, nil)
	f.chatRepo.On("GetByID", mock.Anything, chatID).Return(&domain.Chat{ID: chatID, LastMessageID: &messageID}, nil)
	f.messageRepo.On("Delete", mock.Anything, messageID).Return(nil)
	f.messageRepo.On("NewestForChat", mock.Anything, chatID).Return(remaining, nil)
	f.chatRepo.On("SetLastMessage", mock.Anything, chatID, &remaining.ID, remaining.CreatedAt).Return(nil)

	require.NoError(t, f.service.Delete(context.Background(), messageID, senderID, domain.Capabilities{}))

	f.chatRepo.AssertCalled(t, "SetLastMessage", mock.Anything, chatID, &remaining.ID, remaining.CreatedAt)
	require.Len(t, f.broadcaster.events, 1)
	assert.Equal(t, hub.EventMessageDeleted, f.broadcaster.events[0].eventType)
	assert.Contains(t, f.audit.eventTypes, domain.EventTypeMessageDeleted)
}

func TestDeleteOfLastRemainingMessageClearsPointer(t *testing.T) {
	f := newMessageFixture()
	chatID, senderID, messageID := uuid.New(), uuid.New(), uuid.New()
	lastActivity := time.Now().Add(-time.Hour)

	f.messageRepo.On("GetByID", mock.Anything, messageID).Return(&domain.Message{
		ID: messageID, ChatID: chatID, SenderID: senderID,
	}, nil)
	f.chatRepo.On("GetByID", mock.Anything, chatID).Return(&domain.Chat{
		ID: chatID, LastMessageID: &messageID, LastActivityAt: lastActivity,
	}, nil)
	f.messageRepo.On("Delete", mock.Anything, messageID).Return(nil)
	f.messageRepo.On("NewestForChat", mock.Anything, chatID).Return(nil, apperrors.ErrMessageNotFound)
	f.chatRepo.On("SetLastMessage", mock.Anything, chatID, (*uuid.UUID)(nil), lastActivity).Return(nil)

	require.NoError(t, f.service.Delete(context.Background(), messageID, senderID, domain.Capabilities{}))
	f.chatRepo.AssertCalled(t, "SetLastMessage", mock.Anything, chatID, (*uuid.UUID)(nil), lastActivity)
}

func TestDeleteReleasesHostedFileAfterRowRemoved(t *testing.T) {
	f := newMessageFixture()
	chatID, senderID, messageID := uuid.New(), uuid.New(), uuid.New()

	f.messageRepo.On("GetByID", mock.Anything, messageID).Return(&domain.Message{
		ID: messageID, ChatID: chatID, SenderID: senderID,
		File: &domain.Attachment{URL: "https://media.test/doc.pdf", PublicID: "media/doc", Kind: domain.AttachmentKindRaw},
	}, nil)
	f.chatRepo.On("GetByID", mock.Anything, chatID).Return(&domain.Chat{ID: chatID}, nil)
	f.messageRepo.On("Delete", mock.Anything, messageID).Return(nil)
	f.media.On("Destroy", mock.Anything, "media/doc").Return(nil)

	require.NoError(t, f.service.Delete(context.Background(), messageID, senderID, domain.Capabilities{}))
	f.media.AssertCalled(t, "Destroy", mock.Anything, "media/doc")
}

func TestDeleteKeepsHostedFileWhenRowDeleteFails(t *testing.T) {
	f := newMessageFixture()
	chatID, senderID, messageID := uuid.New(), uuid.New(), uuid.New()

	f.messageRepo.On("GetByID", mock.Anything, messageID).Return(&domain.Message{
		ID: messageID, ChatID: chatID, SenderID: senderID,
		File: &domain.Attachment{URL: "https://media.test/doc.pdf", PublicID: "media/doc", Kind: domain.AttachmentKindRaw},
	}, nil)
	f.chatRepo.On("GetByID", mock.Anything, chatID).Return(&domain.Chat{ID: chatID}, nil)
	f.messageRepo.On("Delete", mock.Anything, messageID).Return(assert.AnError)

	err := f.service.Delete(context.Background(), messageID, senderID, domain.Capabilities{})
	require.Error(t, err)
	// The attachment must survive a failed delete: the message still exists.
	f.media.AssertNotCalled(t, "Destroy", mock.Anything, mock.Anything)
	assert.Empty(t, f.broadcaster.events)
	assert.Empty(t, f.audit.eventTypes)
}

func TestDeleteByGroupAdmin(t *testing.T) {
	f := newMessageFixture()
	chatID, groupID, messageID := uuid.New(), uuid.New(), uuid.New()
	adminID := uuid.New()

	f.messageRepo.On("GetByID", mock.Anything, messageID).Return(&domain.Message{
		ID: messageID, ChatID: chatID, SenderID: uuid.New(),
	}, nil)
	f.chatRepo.On("GetByID", mock.Anything, chatID).Return(&domain.Chat{
		ID: chatID, ChatType: domain.ChatTypeGroup, GroupID: &groupID,
	}, nil)
	f.messageRepo.On("Delete", mock.Anything, messageID).Return(nil)

	caps := domain.Capabilities{AdminOfGroups: []uuid.UUID{groupID}}
	require.NoError(t, f.service.Delete(context.Background(), messageID, adminID, caps))
}

func TestDeleteByBystanderIsForbidden(t *testing.T) {
	f := newMessageFixture()
	chatID, messageID := uuid.New(), uuid.New()

	f.messageRepo.On("GetByID", mock.Anything, messageID).Return(&domain.Message{
		ID: messageID, ChatID: chatID, SenderID: uuid.New(),
	}, nil)
	f.chatRepo.On("GetByID", mock.Anything, chatID).Return(&domain.Chat{ID: chatID}, nil)

	err := f.service.Delete(context.Background(), messageID, uuid.New(), domain.Capabilities{AdminOfGroups: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	f.messageRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestMarkReadBroadcastsReadStateEvent(t *testing.T) {
	f := newMessageFixture()
	chatID, readerID := uuid.New(), uuid.New()

	f.expectMembership(chatID, readerID, true)
	f.messageRepo.On("MarkChatRead", mock.Anything, chatID, readerID).Return(int64(3), nil)

	count, err := f.service.MarkRead(context.Background(), chatID, readerID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.Len(t, f.broadcaster.events, 1)
	assert.Equal(t, hub.EventChatMessagesUpdated, f.broadcaster.events[0].eventType)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newMessageFixture()
	chatID, readerID := uuid.New(), uuid.New()

	f.expectMembership(chatID, readerID, true)
	// Second call finds nothing new to record.
	f.messageRepo.On("MarkChatRead", mock.Anything, chatID, readerID).Return(int64(0), nil)

	count, err := f.service.MarkRead(context.Background(), chatID, readerID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestToggleReactionRejectsUnknownEmoji(t *testing.T) {
	f := newMessageFixture()

	_, err := f.service.ToggleReaction(context.Background(), uuid.New(), uuid.New(), "🦄")
	require.Error(t, err)
	assert.Equal(t, 400, apperrors.HTTPStatusFromError(err))
	f.messageRepo.AssertNotCalled(t, "ToggleReaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestToggleReactionBroadcastsUpdatedMessage(t *testing.T) {
	f := newMessageFixture()
	chatID, messageID, userID := uuid.New(), uuid.New(), uuid.New()
	senderID := uuid.New()

	f.messageRepo.On("GetByID", mock.Anything, messageID).Return(&domain.Message{
		ID: messageID, ChatID: chatID, SenderID: senderID,
	}, nil)
	f.expectMembership(chatID, userID, true)
	f.messageRepo.On("ToggleReaction", mock.Anything, messageID, userID, "👍").Return(true, nil)
	f.expectResolve(senderID)

	_, err := f.service.ToggleReaction(context.Background(), messageID, userID, "👍")
	require.NoError(t, err)

	require.Len(t, f.broadcaster.events, 1)
	assert.Equal(t, hub.EventMessageUpdated, f.broadcaster.events[0].eventType)
}

func TestListForChatReturnsChronologicalPageAndMarksItRead(t *testing.T) {
	f := newMessageFixture()
	chatID, requesterID, senderID := uuid.New(), uuid.New(), uuid.New()

	newest := &domain.Message{ID: uuid.New(), ChatID: chatID, SenderID: senderID, CreatedAt: time.Now()}
	middle := &domain.Message{ID: uuid.New(), ChatID: chatID, SenderID: senderID, CreatedAt: time.Now().Add(-time.Minute)}
	oldest := &domain.Message{ID: uuid.New(), ChatID: chatID, SenderID: senderID, CreatedAt: time.Now().Add(-2 * time.Minute)}

	f.expectMembership(chatID, requesterID, true)
	f.messageRepo.On("ListForChat", mock.Anything, chatID, 20, 0).
		Return([]*domain.Message{newest, middle, oldest}, 3, nil)
	f.messageRepo.On("MarkMessagesRead", mock.Anything, mock.Anything, requesterID).Return(nil)
	f.expectResolve(senderID)

	messages, total, err := f.service.ListForChat(context.Background(), chatID, requesterID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, messages, 3)
	assert.Equal(t, oldest.ID, messages[0].ID)
	assert.Equal(t, newest.ID, messages[2].ID)

	f.messageRepo.AssertCalled(t, "MarkMessagesRead", mock.Anything, mock.Anything, requesterID)
}

func TestReportRequiresReason(t *testing.T) {
	f := newMessageFixture()

	err := f.service.Report(context.Background(), uuid.New(), uuid.New(), "   ")
	require.Error(t, err)
	assert.Equal(t, 400, apperrors.HTTPStatusFromError(err))
}

func TestReportPersistsAndAudits(t *testing.T) {
	f := newMessageFixture()
	chatID, messageID, reporterID := uuid.New(), uuid.New(), uuid.New()

	f.messageRepo.On("GetByID", mock.Anything, messageID).Return(&domain.Message{
		ID: messageID, ChatID: chatID, SenderID: uuid.New(),
	}, nil)
	f.expectMembership(chatID, reporterID, true)
	f.reportRepo.On("Create", mock.Anything, mock.MatchedBy(func(report *domain.MessageReport) bool {
		return report.MessageID == messageID && report.ReporterID == reporterID && report.Reason == "harassment"
	})).Return(nil)

	require.NoError(t, f.service.Report(context.Background(), messageID, reporterID, "harassment"))
	assert.Contains(t, f.audit.eventTypes, domain.EventTypeMessageReported)
}
