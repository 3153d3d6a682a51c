package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/model"
	"github.com/trungle-dev/relaychat/internal/service"
)

// NotificationHandler handles notification fan-out HTTP endpoints
type NotificationHandler struct {
	notifs *service.NotificationService
}

func NewNotificationHandler(notifs *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifs: notifs}
}

// Notify godoc
// @Summary Create a notification for a set of recipients
// @Description Persists one notification addressed to the recipient set and dispatches push payloads in the background. Returns once the record is durable.
// @Tags Notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.NotifyRequest true "Notify request"
// @Success 201 {object} model.Notification
// @Failure 400 {object} model.ErrorResponse
// @Router /notifications [post]
func (h *NotificationHandler) Notify(c *gin.Context) {
	var req model.NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	// System-generated notifications carry no source; an omitted type
	// defaults to system in the engine.
	var source *uuid.UUID
	if req.Type != "" && req.Type != model.NotificationTypeSystem {
		id := actorID(c)
		source = &id
	}

	n, err := h.notifs.Notify(c.Request.Context(), service.NotifyInput{
		UserIDs:      req.UserIDs,
		Title:        req.Title,
		Message:      req.Message,
		Type:         req.Type,
		SourceUserID: source,
		Data:         req.Data,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, n)
}

// List godoc
// @Summary List notifications for the actor
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param include_read query bool false "Include already-read notifications"
// @Param before query string false "Cursor: notification ID to get notifications before"
// @Param limit query int false "Number of notifications to return (default: 50)"
// @Success 200 {array} model.NotificationResponse
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	var req model.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request"})
		return
	}

	notifications, err := h.notifs.ListForUser(c.Request.Context(), actorID(c), req.IncludeRead, parseCursor(req.Before), req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, notifications)
}

// MarkRead godoc
// @Summary Acknowledge a notification
// @Description Only recipients may acknowledge. Idempotent.
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notifID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid notification ID"})
		return
	}

	if err := h.notifs.MarkRead(c.Request.Context(), notifID, actorID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Notification marked as read"})
}

// ListUndispatched godoc
// @Summary List recipients with no recorded push dispatch
// @Description Hook for the periodic re-dispatch sweep.
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Batch size (default: 50)"
// @Success 200 {array} model.NotificationRecipient
// @Router /notifications/undispatched [get]
func (h *NotificationHandler) ListUndispatched(c *gin.Context) {
	var req model.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request"})
		return
	}

	pending, err := h.notifs.ListUndispatched(c.Request.Context(), req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, pending)
}
