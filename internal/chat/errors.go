package chat

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrAccessDenied      = errors.New("access denied: not a member of the room")
	ErrRoomClosed        = errors.New("room is not active")
	ErrInvalidMessage    = errors.New("invalid message")
	ErrInvalidTransition = errors.New("invalid room status transition")
	ErrInvalidRoom       = errors.New("invalid room: two distinct counterparties required")
)
