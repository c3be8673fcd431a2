package storage

import (
	"context"
	"time"

	"marketchat/backend/internal/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetOrCreatePreferences loads the user's notification preferences, creating
// the default record on first use.
func (s *Service) GetOrCreatePreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	var prefs models.NotificationPreferences
	defaults := models.DefaultPreferences(userID)

	err := s.DB.WithContext(ctx).
		Where(&models.NotificationPreferences{UserID: userID}).
		Attrs(defaults).
		FirstOrCreate(&prefs).Error
	if err != nil {
		return nil, wrap("get or create preferences", err)
	}
	return &prefs, nil
}

func (s *Service) SavePreferences(ctx context.Context, prefs *models.NotificationPreferences) error {
	return wrap("save preferences", s.DB.WithContext(ctx).Save(prefs).Error)
}

// CreateNotification stores n together with the channels it is owed in one
// transaction. Either both land or neither does.
func (s *Service) CreateNotification(ctx context.Context, n *models.Notification, channels []models.Channel) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Deliveries").Create(n).Error; err != nil {
			return err
		}
		return appendDeliveries(tx, n.ID, channels)
	})
	if err != nil {
		return wrap("create notification", err)
	}
	n.DeliveredChannels = lo.Uniq(channels)
	return nil
}

// AppendDeliveries records channels for a notification. Channels already
// recorded are left untouched, so the set only ever grows.
func (s *Service) AppendDeliveries(ctx context.Context, notificationID uint, channels []models.Channel) error {
	return wrap("append deliveries", appendDeliveries(s.DB.WithContext(ctx), notificationID, channels))
}

func appendDeliveries(db *gorm.DB, notificationID uint, channels []models.Channel) error {
	if len(channels) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := lo.Map(lo.Uniq(channels), func(ch models.Channel, _ int) models.NotificationDelivery {
		return models.NotificationDelivery{NotificationID: notificationID, Channel: ch, CreatedAt: now}
	})
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (s *Service) GetNotification(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.DB.WithContext(ctx).Preload("Deliveries", orderDeliveries).First(&n, id).Error; err != nil {
		return nil, wrap("get notification", err)
	}
	fillChannels(&n)
	return &n, nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	q := s.DB.WithContext(ctx).Preload("Deliveries", orderDeliveries).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var out []models.Notification
	if err := q.Order("id desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, wrap("list notifications", err)
	}
	for i := range out {
		fillChannels(&out[i])
	}
	return out, nil
}

func (s *Service) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, wrap("count unread", err)
	}
	return count, nil
}

// MarkNotificationRead flips the read flag of a notification owned by userID.
// It reports false when no unread notification matched.
func (s *Service) MarkNotificationRead(ctx context.Context, id uint, userID string, at time.Time) (bool, error) {
	result := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
		})
	if result.Error != nil {
		return false, wrap("mark notification read", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func orderDeliveries(db *gorm.DB) *gorm.DB {
	return db.Order("created_at asc")
}

func fillChannels(n *models.Notification) {
	n.DeliveredChannels = lo.Map(n.Deliveries, func(d models.NotificationDelivery, _ int) models.Channel { return d.Channel })
}
