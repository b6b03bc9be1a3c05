package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"campus_connect/internal/service"
	apperrors "campus_connect/pkg/errors"
	"campus_connect/pkg/logger"
)

type ChatHandler struct {
	chatService service.ChatService
	log         logger.Logger
}

func NewChatHandler(chatService service.ChatService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		log:         log,
	}
}

type createOneOnOneRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" binding:"required"`
}

func (h *ChatHandler) CreateOneOnOne(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized)
		return
	}

	var req createOneOnOneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewAPIError("recipient_id is required", http.StatusBadRequest))
		return
	}

	chat, err := h.chatService.GetOrCreateOneOnOne(c.Request.Context(), userID, req.RecipientID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, chat)
}

func (h *ChatHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized)
		return
	}

	page, limit := paginationParams(c)
	chats, total, err := h.chatService.ListForUser(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondPage(c, chats, page, limit, total)
}

func (h *ChatHandler) GetByID(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, apperrors.ErrUnauthorized)
		return
	}

	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.NewAPIError("invalid chat ID", http.StatusBadRequest))
		return
	}

	chat, err := h.chatService.GetByID(c.Request.Context(), chatID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, chat)
}
