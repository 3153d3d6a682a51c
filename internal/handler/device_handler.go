package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trungle-dev/relaychat/internal/model"
	"github.com/trungle-dev/relaychat/internal/repository"
)

// DeviceHandler registers push targets for the authenticated actor
type DeviceHandler struct {
	devices repository.DeviceStore
}

func NewDeviceHandler(devices repository.DeviceStore) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// Register godoc
// @Summary Register a device push token
// @Description Upserts an FCM token for the actor; re-registering bumps last_active_at.
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.RegisterDeviceRequest true "Device registration"
// @Success 200 {object} model.UserDevice
// @Failure 400 {object} model.ErrorResponse
// @Router /devices [post]
func (h *DeviceHandler) Register(c *gin.Context) {
	var req model.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	device := &model.UserDevice{
		UserID:     actorID(c),
		FCMToken:   req.FCMToken,
		DeviceType: req.DeviceType,
	}
	if err := h.devices.Upsert(c.Request.Context(), device); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, device)
}
