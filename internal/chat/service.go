// Package chat owns the room and message lifecycle: room lookup, access
// control, persistence, read receipts and the hand-off to live delivery or
// the notification fallback.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketchat/backend/internal/config"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Store is the persistence the chat service needs.
type Store interface {
	CreateOrGetRoom(ctx context.Context, room *models.Room) (*models.Room, error)
	GetRoomByID(ctx context.Context, roomID string) (*models.Room, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error)
	TransitionRoomStatus(ctx context.Context, roomID string, from, to models.RoomStatus) (bool, error)
	SaveMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, roomID string, limit int, beforeID uint) ([]models.Message, error)
	MarkMessagesRead(ctx context.Context, roomID, userID string, messageIDs []uint) error
}

// Hub is the live delivery side.
type Hub interface {
	BroadcastToRoom(roomID string, ev models.Event, excludeUserID string) int
	SendToUser(userID string, ev models.Event) bool
	IsPresent(userID, roomID string) bool
	IsConnected(userID string) bool
}

// Notifier records a fallback notification for a recipient who is not watching the room.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, recipientID string, msg *models.Message) error
}

type Service struct {
	Store     Store
	Hub       Hub
	Notifier  Notifier
	Log       *zap.Logger
	PageLimit int

	locks *roomLocker
	now   func() time.Time
}

func NewService(store Store, hub Hub, notifier Notifier, log *zap.Logger, pageLimit int) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if pageLimit <= 0 {
		pageLimit = config.DefaultPageLimit
	}
	return &Service{
		Store:     store,
		Hub:       hub,
		Notifier:  notifier,
		Log:       log,
		PageLimit: pageLimit,
		locks:     newRoomLocker(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrGetRoom returns the room shared by a and b, creating an active one on
// first contact. The pair is unordered.
func (s *Service) CreateOrGetRoom(ctx context.Context, a, b string, linkedObjectID *string) (*models.Room, error) {
	if a == "" || b == "" || a == b {
		return nil, ErrInvalidRoom
	}
	now := s.now()
	room, err := s.Store.CreateOrGetRoom(ctx, &models.Room{
		CounterpartAID: a,
		CounterpartBID: b,
		LinkedObjectID: linkedObjectID,
		Status:         models.RoomActive,
		CreatedAt:      now,
		LastActivityAt: now,
	})
	if err != nil {
		s.Log.Error("create or get room failed", zap.String("user_id", a), zap.Error(err))
		return nil, err
	}
	return room, nil
}

// Send persists a message and fans it out. The room is broadcast to in full,
// sender included, so every device of the sender stays in sync. When the other
// party is not watching the room a notification is recorded for them.
//
// Nothing is broadcast unless the message was stored.
func (s *Service) Send(ctx context.Context, roomID, senderID string, req SendRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(roomID)
	room, err := s.memberRoom(ctx, roomID, senderID)
	if err != nil {
		unlock()
		return nil, err
	}
	if !room.IsActive() {
		unlock()
		return nil, ErrRoomClosed
	}

	msg := &models.Message{
		RoomID:      roomID,
		SenderID:    senderID,
		SenderRole:  req.SenderRole,
		Kind:        req.Kind,
		Body:        req.Body,
		Attachments: req.Attachments,
		ReadBy:      []string{},
		CreatedAt:   s.now(),
	}
	if err := s.Store.SaveMessage(ctx, msg); err != nil {
		unlock()
		s.Log.Error("save message failed", zap.String("room_id", roomID), zap.Error(err))
		return nil, err
	}

	ev := models.NewMessageEvent(msg)
	s.Hub.BroadcastToRoom(roomID, ev, "")
	if !s.Hub.IsPresent(senderID, roomID) {
		s.Hub.SendToUser(senderID, ev)
	}
	unlock()

	recipient, _ := room.Counterpart(senderID)
	if s.Hub.IsPresent(recipient, roomID) && s.Hub.IsConnected(recipient) {
		return msg, nil
	}
	if s.Notifier != nil {
		if err := s.Notifier.NotifyNewMessage(ctx, recipient, msg); err != nil {
			s.Log.Error("notify recipient failed",
				zap.String("user_id", recipient),
				zap.Uint("message_id", msg.ID),
				zap.Error(err))
		}
	}
	return msg, nil
}

// Messages returns a page of the room's history, newest first, older than
// beforeID when it is non-zero. Every returned message is marked read by the requester.
func (s *Service) Messages(ctx context.Context, roomID, requesterID string, limit int, beforeID uint) ([]models.Message, error) {
	if _, err := s.memberRoom(ctx, roomID, requesterID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.PageLimit
	}
	limit = min(limit, config.MaxPageLimit)

	msgs, err := s.Store.ListMessages(ctx, roomID, limit, beforeID)
	if err != nil {
		s.Log.Error("list messages failed", zap.String("room_id", roomID), zap.Error(err))
		return nil, err
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	ids := lo.Map(msgs, func(m models.Message, _ int) uint { return m.ID })
	if err := s.Store.MarkMessagesRead(ctx, roomID, requesterID, ids); err != nil {
		s.Log.Error("mark read on fetch failed", zap.String("room_id", roomID), zap.Error(err))
		return nil, err
	}
	for i := range msgs {
		if !msgs[i].IsReadBy(requesterID) {
			msgs[i].ReadBy = append(msgs[i].ReadBy, requesterID)
		}
	}
	return msgs, nil
}

// MarkRead adds the requester to the readers of the listed messages. An empty
// list marks nothing.
func (s *Service) MarkRead(ctx context.Context, roomID, requesterID string, messageIDs []uint) error {
	if _, err := s.memberRoom(ctx, roomID, requesterID); err != nil {
		return err
	}
	if len(messageIDs) == 0 {
		return nil
	}
	if err := s.Store.MarkMessagesRead(ctx, roomID, requesterID, messageIDs); err != nil {
		s.Log.Error("mark read failed", zap.String("room_id", roomID), zap.Error(err))
		return err
	}
	return nil
}

// Rooms lists the rooms userID takes part in, most recently active first.
func (s *Service) Rooms(ctx context.Context, userID string) ([]models.Room, error) {
	return s.Store.ListRoomsForUser(ctx, userID)
}

func (s *Service) Archive(ctx context.Context, roomID, requesterID string) (*models.Room, error) {
	return s.transition(ctx, roomID, requesterID, models.RoomArchived)
}

func (s *Service) Block(ctx context.Context, roomID, requesterID string) (*models.Room, error) {
	return s.transition(ctx, roomID, requesterID, models.RoomBlocked)
}

// CanAccess reports whether userID is a counterparty of roomID. An unknown room is not an error.
func (s *Service) CanAccess(ctx context.Context, roomID, userID string) (bool, error) {
	_, err := s.memberRoom(ctx, roomID, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrAccessDenied):
		return false, nil
	}
	return false, err
}

// Counterpart resolves the other party of a room as seen by userID.
func (s *Service) Counterpart(ctx context.Context, roomID, userID string) (string, error) {
	room, err := s.memberRoom(ctx, roomID, userID)
	if err != nil {
		return "", err
	}
	other, _ := room.Counterpart(userID)
	return other, nil
}

func (s *Service) transition(ctx context.Context, roomID, requesterID string, to models.RoomStatus) (*models.Room, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	room, err := s.memberRoom(ctx, roomID, requesterID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive() {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, room.Status, to)
	}
	ok, err := s.Store.TransitionRoomStatus(ctx, roomID, models.RoomActive, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: room is no longer active", ErrInvalidTransition)
	}
	room.Status = to
	s.Log.Info("room status changed", zap.String("room_id", roomID), zap.String("status", string(to)), zap.String("user_id", requesterID))
	return room, nil
}

func (s *Service) memberRoom(ctx context.Context, roomID, userID string) (*models.Room, error) {
	room, err := s.Store.GetRoomByID(ctx, roomID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if !room.HasMember(userID) {
		return nil, ErrAccessDenied
	}
	return room, nil
}
