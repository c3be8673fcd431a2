package handler

import (
	"errors"
	"net/http"

	"marketchat/backend/internal/chat"
	"marketchat/backend/internal/notification"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusOf maps service errors to HTTP statuses. Anything unknown, storage
// failures included, is a 500.
func statusOf(err error) int {
	switch {
	case errors.Is(err, chat.ErrRoomNotFound), errors.Is(err, notification.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrRoomClosed), errors.Is(err, chat.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, chat.ErrInvalidMessage), errors.Is(err, chat.ErrInvalidRoom),
		errors.Is(err, notification.ErrUnsupportedLanguage):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
