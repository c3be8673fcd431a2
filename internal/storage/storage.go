package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Error is a persistence failure. It wraps the driver error with the operation that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return &Error{Op: op, Err: err}
}

type Storage interface {
	CreateOrGetRoom(ctx context.Context, room *models.Room) (*models.Room, error)
	GetRoomByID(ctx context.Context, roomID string) (*models.Room, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error)
	TransitionRoomStatus(ctx context.Context, roomID string, from, to models.RoomStatus) (bool, error)

	SaveMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, roomID string, limit int, beforeID uint) ([]models.Message, error)
	MarkMessagesRead(ctx context.Context, roomID, userID string, messageIDs []uint) error

	GetOrCreatePreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error)
	SavePreferences(ctx context.Context, prefs *models.NotificationPreferences) error
	CreateNotification(ctx context.Context, n *models.Notification, channels []models.Channel) error
	AppendDeliveries(ctx context.Context, notificationID uint, channels []models.Channel) error
	GetNotification(ctx context.Context, id uint) (*models.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkNotificationRead(ctx context.Context, id uint, userID string, at time.Time) (bool, error)

	EnqueueOutbox(ctx context.Context, job OutboxJob) error
	OutboxLen(ctx context.Context, channel models.Channel) (int64, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor. rdb may be nil for tools that never touch the outbox.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Migrate creates or updates every table the service owns.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.Room{},
		&models.Message{},
		&models.MessageRead{},
		&models.Notification{},
		&models.NotificationDelivery{},
		&models.NotificationPreferences{},
	)
}

// CreateOrGetRoom returns the room for the unordered counterparty pair, creating it if needed.
func (s *Service) CreateOrGetRoom(ctx context.Context, room *models.Room) (*models.Room, error) {
	key := models.PairKey(room.CounterpartAID, room.CounterpartBID)

	var existing models.Room
	err := s.DB.WithContext(ctx).
		Where(&models.Room{PairKey: key}).
		Attrs(room).
		FirstOrCreate(&existing).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost a race with a concurrent creator; the row exists now
		existing = models.Room{}
		err = s.DB.WithContext(ctx).Where("pair_key = ?", key).First(&existing).Error
	}
	if err != nil {
		return nil, wrap("create or get room", err)
	}
	return &existing, nil
}

func (s *Service) GetRoomByID(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	if err := s.DB.WithContext(ctx).Where("id = ?", roomID).First(&room).Error; err != nil {
		return nil, wrap("get room", err)
	}
	return &room, nil
}

// ListRoomsForUser returns the rooms where userID is a counterparty, most recently active first.
func (s *Service) ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	var rooms []models.Room
	err := s.DB.WithContext(ctx).
		Where("counterpart_a_id = ? OR counterpart_b_id = ?", userID, userID).
		Order("last_activity_at desc").
		Find(&rooms).Error
	if err != nil {
		return nil, wrap("list rooms", err)
	}
	return rooms, nil
}

// TransitionRoomStatus moves a room from one status to another. It reports false
// when the room was not in the expected status.
func (s *Service) TransitionRoomStatus(ctx context.Context, roomID string, from, to models.RoomStatus) (bool, error) {
	result := s.DB.WithContext(ctx).Model(&models.Room{}).
		Where("id = ? AND status = ?", roomID, from).
		Update("status", to)
	if result.Error != nil {
		return false, wrap("transition room status", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SaveMessage persists a new message and moves the room's last activity to the
// message time, in one transaction. msg.ID is filled in by the database.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		result := tx.Model(&models.Room{}).
			Where("id = ?", msg.RoomID).
			Update("last_activity_at", msg.CreatedAt)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return wrap("save message", err)
}

// ListMessages returns up to limit messages of a room, newest first, strictly
// older than beforeID when it is non-zero. Reader sets are loaded.
func (s *Service) ListMessages(ctx context.Context, roomID string, limit int, beforeID uint) ([]models.Message, error) {
	q := s.DB.WithContext(ctx).Where("room_id = ?", roomID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []models.Message
	if err := q.Order("id desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, wrap("list messages", err)
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	ids := lo.Map(msgs, func(m models.Message, _ int) uint { return m.ID })
	var reads []models.MessageRead
	if err := s.DB.WithContext(ctx).Where("message_id IN ?", ids).Order("read_at asc").Find(&reads).Error; err != nil {
		return nil, wrap("load readers", err)
	}
	readers := lo.GroupBy(reads, func(r models.MessageRead) uint { return r.MessageID })
	for i := range msgs {
		msgs[i].ReadBy = lo.Map(readers[msgs[i].ID], func(r models.MessageRead, _ int) string { return r.UserID })
	}
	return msgs, nil
}

// MarkMessagesRead adds userID to the reader set of each listed message that
// belongs to roomID. Ids from other rooms are ignored; re-marking is a no-op.
func (s *Service) MarkMessagesRead(ctx context.Context, roomID, userID string, messageIDs []uint) error {
	if len(messageIDs) == 0 {
		return nil
	}

	var valid []uint
	err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("room_id = ? AND id IN ?", roomID, lo.Uniq(messageIDs)).
		Pluck("id", &valid).Error
	if err != nil {
		return wrap("mark read", err)
	}
	if len(valid) == 0 {
		return nil
	}

	now := time.Now().UTC()
	reads := lo.Map(valid, func(id uint, _ int) models.MessageRead {
		return models.MessageRead{MessageID: id, UserID: userID, ReadAt: now}
	})
	err = s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&reads).Error
	return wrap("mark read", err)
}
