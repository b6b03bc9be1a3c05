package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"campus_connect/internal/domain"
	"campus_connect/internal/service"
	apperrors "campus_connect/pkg/errors"
	"campus_connect/pkg/logger"
)

// LifecycleHandler receives the group/event service's hooks and mirrors
// them into bound chats: creation, membership changes, deletion.
type LifecycleHandler struct {
	chatService service.ChatService
	log         logger.Logger
}

func NewLifecycleHandler(chatService service.ChatService, log logger.Logger) *LifecycleHandler {
	return &LifecycleHandler{
		chatService: chatService,
		log:         log,
	}
}

func parentKind(c *gin.Context) (domain.ParentKind, error) {
	switch c.Param("kind") {
	case "groups":
		return domain.ParentKindGroup, nil
	case "events":
		return domain.ParentKindEvent, nil
	default:
		return "", apperrors.NewAPIError("unknown parent kind", http.StatusBadRequest)
	}
}

type parentCreatedRequest struct {
	ParentID  uuid.UUID   `json:"parent_id" binding:"required"`
	MemberIDs []uuid.UUID `json:"member_ids" binding:"required"`
}

func (h *LifecycleHandler) ParentCreated(c *gin.Context) {
	kind, err := parentKind(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req parentCreatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewAPIError("parent_id and member_ids are required", http.StatusBadRequest))
		return
	}

	chat, err := h.chatService.CreateBoundChat(c.Request.Context(), kind, req.ParentID, req.MemberIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, chat)
}

type memberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

func (h *LifecycleHandler) MemberAdded(c *gin.Context) {
	kind, err := parentKind(c)
	if err != nil {
		respondError(c, err)
		return
	}
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.NewAPIError("invalid parent ID", http.StatusBadRequest))
		return
	}

	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewAPIError("user_id is required", http.StatusBadRequest))
		return
	}

	if err := h.chatService.AddParticipant(c.Request.Context(), kind, parentID, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"parent_id": parentID, "user_id": req.UserID})
}

func (h *LifecycleHandler) MemberRemoved(c *gin.Context) {
	kind, err := parentKind(c)
	if err != nil {
		respondError(c, err)
		return
	}
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.NewAPIError("invalid parent ID", http.StatusBadRequest))
		return
	}

	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewAPIError("user_id is required", http.StatusBadRequest))
		return
	}

	if err := h.chatService.RemoveParticipant(c.Request.Context(), kind, parentID, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"parent_id": parentID, "user_id": req.UserID})
}

func (h *LifecycleHandler) ParentDeleted(c *gin.Context) {
	kind, err := parentKind(c)
	if err != nil {
		respondError(c, err)
		return
	}
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.NewAPIError("invalid parent ID", http.StatusBadRequest))
		return
	}

	if err := h.chatService.DeleteBoundChat(c.Request.Context(), kind, parentID); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"parent_id": parentID})
}
