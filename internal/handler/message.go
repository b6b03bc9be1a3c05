package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"campus_connect/internal/domain"
	"campus_connect/internal/service"
	apperrors "campus_connect/pkg/errors"
	"campus_connect/pkg/logger"
)

const maxUploadSize = 25 << 20 // 25 MiB

type MessageHandler struct {
	messageService service.MessageService
	log            logger.Logger
}

func NewMessageHandler(messageService service.MessageService, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		log:            log,
	}
}

// Send accepts either JSON (text-only, with optional reply) or multipart
// form data when a file rides along.
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized)
		return
	}

	input, err := h.parseSendRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}
	input.SenderID = userID

	message, err := h.messageService.Send(c.Request.Context(), *input)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, message)
}

type sendMessageRequest struct {
	ChatID  uuid.UUID  `json:"chat_id" form:"chat_id" binding:"required"`
	Content *string    `json:"content" form:"content"`
	ReplyTo *uuid.UUID `json:"reply_to" form:"reply_to"`
}

func (h *MessageHandler) parseSendRequest(c *gin.Context) (*service.SendMessageInput, error) {
	contentType := c.GetHeader("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		var req sendMessageRequest
		if err := c.ShouldBind(&req); err != nil {
			return nil, apperrors.NewAPIError("chat_id is required", http.StatusBadRequest)
		}

		input := &service.SendMessageInput{
			ChatID:    req.ChatID,
			Content:   req.Content,
			ReplyToID: req.ReplyTo,
		}

		fileHeader, err := c.FormFile("file")
		if err == nil {
			data, name, err := readUpload(fileHeader)
			if err != nil {
				return nil, err
			}
			input.FileData = data
			input.FileName = name
			input.FileKind = attachmentKindFor(name)
		}
		return input, nil
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperrors.NewAPIError("chat_id is required", http.StatusBadRequest)
	}
	return &service.SendMessageInput{
		ChatID:    req.ChatID,
		Content:   req.Content,
		ReplyToID: req.ReplyTo,
	}, nil
}

func readUpload(header *multipart.FileHeader) ([]byte, string, error) {
	if header.Size > maxUploadSize {
		return nil, "", apperrors.NewAPIError("file exceeds the 25 MiB limit", http.StatusBadRequest)
	}

	file, err := header.Open()
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > maxUploadSize {
		return nil, "", apperrors.NewAPIError("file exceeds the 25 MiB limit", http.StatusBadRequest)
	}
	return data, filepath.Base(header.Filename), nil
}

func attachmentKindFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return domain.AttachmentKindImage
	case ".mp4", ".mov", ".webm":
		return domain.AttachmentKindVideo
	default:
		return domain.AttachmentKindRaw
	}
}

func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized)
		return
	}

	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		respondError(c, apperrors.NewAPIError("invalid chat ID", http.StatusBadRequest))
		return
	}

	page, limit := paginationParams(c)
	messages, total, err := h.messageService.ListForChat(c.Request.Context(), chatID, userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondPage(c, messages, page, limit, total)
}

func (h *MessageHandler) ListFiles(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized)
		return
	}

	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		respondError(c, apperrors.NewAPIError("invalid chat ID", http.StatusBadRequest))
		return
	}

	page, limit := paginationParams(c)
	messages, total, err := h.messageService.ListFilesForChat(c.Request.Context(), chatID, userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondPage(c, messages, page, limit, total)
}

type editMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *MessageHandler) Edit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized)
		return
	}

	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		respondError(c, apperrors.NewAPIError("invalid message ID", http.StatusBadRequest))
		return
	}

	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewAPIError("content is required", http.StatusBadRequest))
		return
	}

	message, err := h.messageService.Edit(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, message)
}

func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized)
		return
	}

	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		respondError(c, apperrors.NewAPIError("invalid message ID", http.StatusBadRequest))
		return
	}

	if err := h.messageService.Delete(c.Request.Context(), messageID, userID, currentCapabilities(c)); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"message_id": messageID})
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized)
		return
	}

	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		respondError(c, apperrors.NewAPIError("invalid chat ID", http.StatusBadRequest))
		return
	}

	count, err := h.messageService.MarkRead(c.Request.Context(), chatID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"marked_read": count})
}

type reactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized)
		return
	}

	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		respondError(c, apperrors.NewAPIError("invalid message ID", http.StatusBadRequest))
		return
	}

	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewAPIError("emoji is required", http.StatusBadRequest))
		return
	}

	message, err := h.messageService.ToggleReaction(c.Request.Context(), messageID, userID, req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, message)
}

type reportRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *MessageHandler) Report(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized)
		return
	}

	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		respondError(c, apperrors.NewAPIError("invalid message ID", http.StatusBadRequest))
		return
	}

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewAPIError("reason is required", http.StatusBadRequest))
		return
	}

	if err := h.messageService.Report(c.Request.Context(), messageID, userID, req.Reason); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, gin.H{"message_id": messageID})
}
