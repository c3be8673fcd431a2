// Package handler exposes the chat and notification services over gin.
package handler

import (
	"marketchat/backend/internal/api/middleware"
	"marketchat/backend/internal/chat"
	"marketchat/backend/internal/chathub"
	"marketchat/backend/internal/notification"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler holds the services behind the HTTP and WebSocket routes.
type Handler struct {
	Hub           *chathub.Dispatcher
	Chat          *chat.Service
	Notifications *notification.Service
	Tokens        *middleware.Tokens
	Log           *zap.Logger

	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int
	// DevTokens enables POST /auth/token, which signs a token for any user id.
	DevTokens bool
}

func NewHandler(hub *chathub.Dispatcher, chats *chat.Service, notifications *notification.Service, tokens *middleware.Tokens, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Hub:           hub,
		Chat:          chats,
		Notifications: notifications,
		Tokens:        tokens,
		Log:           log,
		SendBuffer:    256,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	if h.DevTokens {
		r.POST("/auth/token", h.IssueToken)
	}

	auth := middleware.RequireAuth(h.Tokens)
	r.GET("/ws/:user_id", auth, h.ServeWebSocket)

	rooms := r.Group("/rooms", auth)
	rooms.GET("", h.ListRooms)
	rooms.POST("", h.CreateRoom)
	rooms.POST("/:room_id/messages", h.SendMessage)
	rooms.GET("/:room_id/messages", h.ListMessages)
	rooms.POST("/:room_id/read", h.MarkMessagesRead)
	rooms.POST("/:room_id/archive", h.ArchiveRoom)
	rooms.POST("/:room_id/block", h.BlockRoom)

	notifications := r.Group("/notifications", auth)
	notifications.GET("", h.ListNotifications)
	notifications.GET("/unread-count", h.UnreadCount)
	notifications.POST("/:id/read", h.MarkNotificationRead)
	notifications.GET("/preferences", h.GetPreferences)
	notifications.PUT("/preferences", h.UpdatePreferences)
}
