package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// FrameType discriminates WebSocket frames in both directions.
type FrameType string

const (
	// inbound
	FrameJoinRoom  FrameType = "join_room"
	FrameLeaveRoom FrameType = "leave_room"
	FramePing      FrameType = "ping"

	// outbound
	FrameUserJoined   FrameType = "user_joined"
	FrameUserLeft     FrameType = "user_left"
	FrameNewMessage   FrameType = "new_message"
	FrameNotification FrameType = "notification"
	FramePong         FrameType = "pong"
	FrameError        FrameType = "error"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownFrame   = errors.New("unknown frame type")
)

// InboundFrame is a validated client frame. RoomID is set for join_room and leave_room.
type InboundFrame struct {
	Type   FrameType `json:"type"`
	RoomID string    `json:"room_id,omitempty"`
}

// DecodeInboundFrame parses and validates a client frame in a single step.
func DecodeInboundFrame(data []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return InboundFrame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch f.Type {
	case FrameJoinRoom, FrameLeaveRoom:
		if f.RoomID == "" {
			return InboundFrame{}, fmt.Errorf("%w: %s requires room_id", ErrMalformedFrame, f.Type)
		}
	case FramePing:
		f.RoomID = ""
	case "":
		return InboundFrame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		return InboundFrame{}, fmt.Errorf("%w: %q", ErrUnknownFrame, f.Type)
	}
	return f, nil
}

// NotificationPayload is the light-weight body of a notification event.
type NotificationPayload struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Kind      string `json:"kind"`
	RelatedID string `json:"related_id,omitempty"`
}

// ErrorPayload describes why an inbound frame was rejected.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event is an outbound frame. The payload fields set depend on Type.
type Event struct {
	Type         FrameType            `json:"type"`
	RoomID       string               `json:"room_id,omitempty"`
	UserID       string               `json:"user_id,omitempty"`
	Message      *Message             `json:"message,omitempty"`
	Notification *NotificationPayload `json:"notification,omitempty"`
	Error        *ErrorPayload        `json:"error,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

func UserJoinedEvent(roomID, userID string) Event {
	return Event{Type: FrameUserJoined, RoomID: roomID, UserID: userID, Timestamp: time.Now().UTC()}
}

func UserLeftEvent(roomID, userID string) Event {
	return Event{Type: FrameUserLeft, RoomID: roomID, UserID: userID, Timestamp: time.Now().UTC()}
}

func NewMessageEvent(msg *Message) Event {
	return Event{Type: FrameNewMessage, RoomID: msg.RoomID, Message: msg, Timestamp: time.Now().UTC()}
}

func NotificationEvent(n *Notification) Event {
	return Event{
		Type: FrameNotification,
		Notification: &NotificationPayload{
			ID:        n.ID,
			Title:     n.Title,
			Body:      n.Body,
			Kind:      n.Kind,
			RelatedID: n.RelatedID,
		},
		Timestamp: time.Now().UTC(),
	}
}

func PongEvent() Event {
	return Event{Type: FramePong, Timestamp: time.Now().UTC()}
}

func ErrorEvent(code, message string) Event {
	return Event{Type: FrameError, Error: &ErrorPayload{Code: code, Message: message}, Timestamp: time.Now().UTC()}
}
