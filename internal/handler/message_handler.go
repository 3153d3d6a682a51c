package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/model"
	"github.com/trungle-dev/relaychat/internal/service"
)

// MessageHandler handles message ledger HTTP endpoints
type MessageHandler struct {
	msgs *service.MessageService
}

func NewMessageHandler(msgs *service.MessageService) *MessageHandler {
	return &MessageHandler{msgs: msgs}
}

// Send godoc
// @Summary Send a direct message
// @Description Sends a message to a user, creating the direct conversation on first contact. The receiver is notified asynchronously.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.SendMessageRequest true "Send message request"
// @Success 201 {object} model.Message
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	msg, err := h.msgs.Send(c.Request.Context(), actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// MarkReceived godoc
// @Summary Acknowledge delivery of a message
// @Description Only the receiver may acknowledge. Idempotent.
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} model.Message
// @Failure 403 {object} model.ErrorResponse
// @Router /messages/{id}/received [post]
func (h *MessageHandler) MarkReceived(c *gin.Context) {
	h.transition(c, h.msgs.MarkReceived)
}

// MarkRead godoc
// @Summary Mark a message as read
// @Description Only the receiver may mark as read. Also records delivery. Idempotent.
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} model.Message
// @Failure 403 {object} model.ErrorResponse
// @Router /messages/{id}/read [post]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	h.transition(c, h.msgs.MarkRead)
}

func (h *MessageHandler) transition(c *gin.Context, apply func(context.Context, uuid.UUID, uuid.UUID) (*model.Message, error)) {
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid message ID"})
		return
	}

	msg, err := apply(c.Request.Context(), msgID, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// ListSent godoc
// @Summary List messages sent by the actor
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param before query string false "Cursor: message ID to get messages before"
// @Param limit query int false "Number of messages to return (default: 50)"
// @Success 200 {array} model.Message
// @Router /messages/sent [get]
func (h *MessageHandler) ListSent(c *gin.Context) {
	h.list(c, h.msgs.ListSent)
}

// ListReceived godoc
// @Summary List messages addressed to the actor
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param before query string false "Cursor: message ID to get messages before"
// @Param limit query int false "Number of messages to return (default: 50)"
// @Success 200 {array} model.Message
// @Router /messages/received [get]
func (h *MessageHandler) ListReceived(c *gin.Context) {
	h.list(c, h.msgs.ListReceived)
}

func (h *MessageHandler) list(c *gin.Context, query func(context.Context, uuid.UUID, *uuid.UUID, int) ([]model.Message, error)) {
	var req model.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request"})
		return
	}

	messages, err := query(c.Request.Context(), actorID(c), parseCursor(req.Before), req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}
