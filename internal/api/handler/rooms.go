package handler

import (
	"errors"
	"io"
	"net/http"

	"marketchat/backend/internal/api/middleware"
	"marketchat/backend/internal/chat"
	"marketchat/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	CounterpartID  string  `json:"counterpart_id" binding:"required"`
	LinkedObjectID *string `json:"linked_object_id"`
}

type sendMessageRequest struct {
	SenderRole  string             `json:"sender_role" binding:"required"`
	Kind        models.MessageKind `json:"kind" binding:"required,oneof=text file image system"`
	Body        string             `json:"body"`
	Attachments []string           `json:"attachments"`
}

type historyQuery struct {
	Limit  int  `form:"limit" binding:"omitempty,min=1,max=200"`
	Before uint `form:"before"`
}

type markReadRequest struct {
	MessageIDs []uint `json:"message_ids"`
}

func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.Chat.Rooms(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.Chat.CreateOrGetRoom(c.Request.Context(), middleware.UserID(c), req.CounterpartID, req.LinkedObjectID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.Chat.Send(c.Request.Context(), c.Param("room_id"), middleware.UserID(c), chat.SendRequest{
		SenderRole:  req.SenderRole,
		Kind:        req.Kind,
		Body:        req.Body,
		Attachments: req.Attachments,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) ListMessages(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msgs, err := h.Chat.Messages(c.Request.Context(), c.Param("room_id"), middleware.UserID(c), q.Limit, q.Before)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) MarkMessagesRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Chat.MarkRead(c.Request.Context(), c.Param("room_id"), middleware.UserID(c), req.MessageIDs); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ArchiveRoom(c *gin.Context) {
	room, err := h.Chat.Archive(c.Request.Context(), c.Param("room_id"), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) BlockRoom(c *gin.Context) {
	room, err := h.Chat.Block(c.Request.Context(), c.Param("room_id"), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}
