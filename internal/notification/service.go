// Package notification records fallback notifications, decides which channels
// are owed each one and pushes a light realtime event when the user is online.
package notification

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"marketchat/backend/internal/config"
	"marketchat/backend/internal/localization"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"

	"go.uber.org/zap"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrUnsupportedLanguage  = errors.New("unsupported language")
)

// Store is the persistence the notification service needs.
type Store interface {
	GetOrCreatePreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error)
	SavePreferences(ctx context.Context, prefs *models.NotificationPreferences) error
	CreateNotification(ctx context.Context, n *models.Notification, channels []models.Channel) error
	AppendDeliveries(ctx context.Context, notificationID uint, channels []models.Channel) error
	GetNotification(ctx context.Context, id uint) (*models.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkNotificationRead(ctx context.Context, id uint, userID string, at time.Time) (bool, error)
	EnqueueOutbox(ctx context.Context, job storage.OutboxJob) error
}

// Pusher delivers realtime events to connected users.
type Pusher interface {
	IsConnected(userID string) bool
	SendToUser(userID string, ev models.Event) bool
}

type Service struct {
	Store     Store
	Hub       Pusher
	Localizer *localization.Localizer
	Log       *zap.Logger

	now func() time.Time
}

func NewService(store Store, hub Pusher, loc *localization.Localizer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = localization.NewFromCatalogs(nil)
	}
	return &Service{
		Store:     store,
		Hub:       hub,
		Localizer: loc,
		Log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Notify records a notification for userID and delivers it live when the user
// has a connection. Email, push and sms are recorded per preferences and queued
// for the external delivery worker.
func (s *Service) Notify(ctx context.Context, userID, title, body, kind, relatedID string) (*models.Notification, error) {
	prefs, err := s.Store.GetOrCreatePreferences(ctx, userID)
	if err != nil {
		s.Log.Error("load preferences failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return s.notify(ctx, prefs, title, body, kind, relatedID)
}

// NotifyNewMessage notifies recipientID about msg, in the recipient's language.
func (s *Service) NotifyNewMessage(ctx context.Context, recipientID string, msg *models.Message) error {
	prefs, err := s.Store.GetOrCreatePreferences(ctx, recipientID)
	if err != nil {
		s.Log.Error("load preferences failed", zap.String("user_id", recipientID), zap.Error(err))
		return err
	}

	lang := prefs.Language
	title := s.Localizer.GetString(lang, "notification.new_message.title")
	var body string
	switch msg.Kind {
	case models.KindFile:
		body = s.Localizer.GetString(lang, "notification.new_file.body")
	case models.KindImage:
		body = s.Localizer.GetString(lang, "notification.new_image.body")
	default:
		body = s.Localizer.Format(lang, "notification.new_message.body", map[string]string{"preview": Preview(msg.Body)})
	}

	_, err = s.notify(ctx, prefs, title, body, config.NotificationKindNewMessage, strconv.FormatUint(uint64(msg.ID), 10))
	return err
}

func (s *Service) notify(ctx context.Context, prefs *models.NotificationPreferences, title, body, kind, relatedID string) (*models.Notification, error) {
	userID := prefs.UserID
	n := &models.Notification{
		UserID:    userID,
		Title:     title,
		Body:      body,
		Kind:      kind,
		RelatedID: relatedID,
		CreatedAt: s.now(),
	}
	external := prefs.ExternalChannels()
	if err := s.Store.CreateNotification(ctx, n, external); err != nil {
		s.Log.Error("create notification failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	channels := append([]models.Channel{}, external...)
	if s.Hub != nil && s.Hub.IsConnected(userID) && s.Hub.SendToUser(userID, models.NotificationEvent(n)) {
		if err := s.Store.AppendDeliveries(ctx, n.ID, []models.Channel{models.ChannelRealtime}); err != nil {
			// the event is out and the stored record is still whole
			s.Log.Error("record realtime delivery failed", zap.Uint("notification_id", n.ID), zap.Error(err))
		} else {
			channels = append(channels, models.ChannelRealtime)
		}
	}
	n.DeliveredChannels = channels

	for _, ch := range external {
		job := storage.OutboxJob{
			NotificationID: n.ID,
			UserID:         userID,
			Channel:        ch,
			Title:          title,
			Body:           body,
			EnqueuedAt:     n.CreatedAt,
		}
		if err := s.Store.EnqueueOutbox(ctx, job); err != nil {
			if errors.Is(err, storage.ErrOutboxDisabled) {
				s.Log.Debug("outbox disabled, job not queued", zap.Uint("notification_id", n.ID))
				break
			}
			s.Log.Warn("enqueue outbox failed",
				zap.Uint("notification_id", n.ID),
				zap.String("channel", string(ch)),
				zap.Error(err))
		}
	}

	s.Log.Debug("notification recorded",
		zap.String("user_id", userID),
		zap.Uint("notification_id", n.ID),
		zap.Any("channels", channels))
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.Store.CountUnread(ctx, userID)
}

// MarkRead flags a notification of userID as read. Marking it again is a no-op;
// notifications of other users are reported as not found.
func (s *Service) MarkRead(ctx context.Context, notificationID uint, userID string) error {
	ok, err := s.Store.MarkNotificationRead(ctx, notificationID, userID, s.now())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	n, err := s.Store.GetNotification(ctx, notificationID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return ErrNotificationNotFound
	}
	return nil
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = config.DefaultPageLimit
	}
	limit = min(limit, config.MaxPageLimit)
	return s.Store.ListNotifications(ctx, userID, unreadOnly, limit)
}

func (s *Service) Preferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	return s.Store.GetOrCreatePreferences(ctx, userID)
}

// PreferencesUpdate changes only the fields that are set.
type PreferencesUpdate struct {
	Email    *bool   `json:"email"`
	Push     *bool   `json:"push"`
	SMS      *bool   `json:"sms"`
	Language *string `json:"language"`
}

func (s *Service) UpdatePreferences(ctx context.Context, userID string, upd PreferencesUpdate) (*models.NotificationPreferences, error) {
	if upd.Language != nil && !s.Localizer.Supports(*upd.Language) {
		return nil, ErrUnsupportedLanguage
	}

	prefs, err := s.Store.GetOrCreatePreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil {
		prefs.Email = *upd.Email
	}
	if upd.Push != nil {
		prefs.Push = *upd.Push
	}
	if upd.SMS != nil {
		prefs.SMS = *upd.SMS
	}
	if upd.Language != nil {
		prefs.Language = *upd.Language
	}
	if err := s.Store.SavePreferences(ctx, prefs); err != nil {
		s.Log.Error("save preferences failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return prefs, nil
}

// Preview shortens body to config.PreviewLength runes, ending with an ellipsis when cut.
func Preview(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(body) <= config.PreviewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:config.PreviewLength-1]) + "…"
}
