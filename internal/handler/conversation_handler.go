package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/model"
	"github.com/trungle-dev/relaychat/internal/service"
)

// ConversationHandler handles conversation registry HTTP endpoints
type ConversationHandler struct {
	convs *service.ConversationService
}

func NewConversationHandler(convs *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convs: convs}
}

// Create godoc
// @Summary Create a conversation (direct or group)
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateConversationRequest true "Create conversation request"
// @Success 201 {object} model.Conversation
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /conversations [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	var req model.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	conv, err := h.convs.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// List godoc
// @Summary List the actor's conversations
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param archived query bool false "Include archived conversations"
// @Success 200 {array} model.Conversation
// @Router /conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	includeArchived := c.Query("archived") == "true"

	conversations, err := h.convs.List(c.Request.Context(), actorID(c), includeArchived)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// Get godoc
// @Summary Get a specific conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.Conversation
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/{id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	conv, err := h.convs.Get(c.Request.Context(), convID, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// Update godoc
// @Summary Partially update a conversation
// @Description Patch title, description, image, archived or locked.
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.UpdateConversationRequest true "Fields to update"
// @Success 200 {object} model.Conversation
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/{id} [patch]
func (h *ConversationHandler) Update(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	conv, err := h.convs.Update(c.Request.Context(), convID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// AddMember godoc
// @Summary Add a member to a group conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.MemberRequest true "User to add"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/members [post]
func (h *ConversationHandler) AddMember(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	if err := h.convs.AddMember(c.Request.Context(), convID, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Member added"})
}

// RemoveMember godoc
// @Summary Remove a member from a group conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param userID path string true "User ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/members/{userID} [delete]
func (h *ConversationHandler) RemoveMember(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	if err := h.convs.RemoveMember(c.Request.Context(), convID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Member removed"})
}

// BlockMember godoc
// @Summary Block a member in a conversation
// @Description Blocked members cannot send messages or re-join. Idempotent.
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.MemberRequest true "User to block"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/block [post]
func (h *ConversationHandler) BlockMember(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}

	var req model.MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	if err := h.convs.BlockMember(c.Request.Context(), convID, req.UserID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Member blocked"})
}

// UnblockMember godoc
// @Summary Unblock a member in a conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param userID path string true "User ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/block/{userID} [delete]
func (h *ConversationHandler) UnblockMember(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid conversation ID"})
		return
	}
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	if err := h.convs.UnblockMember(c.Request.Context(), convID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Member unblocked"})
}
