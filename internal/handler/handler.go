package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/trungle-dev/relaychat/internal/apperr"
	"github.com/trungle-dev/relaychat/internal/model"
)

// respondError translates a domain error into the client-facing response.
// Conflicts carry the existing record's id so callers can reuse it.
func respondError(c *gin.Context, err error) {
	e := apperr.As(err)
	if e == nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Internal server error"})
		return
	}

	resp := model.ErrorResponse{Error: e.Message}
	status := http.StatusInternalServerError
	switch e.Kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
		if e.ExistingID != uuid.Nil {
			id := e.ExistingID
			resp.ExistingID = &id
		}
	}
	c.JSON(status, resp)
}

// actorID returns the authenticated actor injected by the auth middleware
func actorID(c *gin.Context) uuid.UUID {
	return c.MustGet("user_id").(uuid.UUID)
}

// parseCursor parses an optional pagination cursor query value
func parseCursor(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &parsed
}
