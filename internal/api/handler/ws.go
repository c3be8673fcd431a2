package handler

import (
	"net/http"

	"marketchat/backend/internal/api/middleware"
	"marketchat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict to the marketplace front-end origins once they are configurable.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request for the authenticated user. The path
// user id must match the token subject.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	userID := middleware.UserID(c)
	if c.Param("user_id") != userID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token does not belong to this user"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.Log.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(conn, userID, h.Hub, h.Chat, h.Log, h.SendBuffer)
	client.Run()
}
