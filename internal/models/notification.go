package models

import "time"

// Channel is a route a notification can be delivered through.
type Channel string

const (
	ChannelRealtime Channel = "realtime"
	ChannelEmail    Channel = "email"
	ChannelPush     Channel = "push"
	ChannelSMS      Channel = "sms"
)

// Notification is a durable record of an asynchronous event for a user.
type Notification struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string `gorm:"not null;index:idx_notif_user_read,priority:1" json:"user_id"`
	Title     string `gorm:"type:text;not null" json:"title"`
	Body      string `gorm:"type:text" json:"body"`
	Kind      string `gorm:"not null" json:"kind"`
	RelatedID string `json:"related_id,omitempty"`
	Read      bool   `gorm:"column:is_read;not null;index:idx_notif_user_read,priority:2" json:"read"`
	// Deliveries is append-only; DeliveredChannels mirrors it for API consumers.
	Deliveries        []NotificationDelivery `gorm:"foreignKey:NotificationID" json:"-"`
	DeliveredChannels []Channel              `gorm:"-" json:"delivered_channels"`
	CreatedAt         time.Time              `json:"created_at"`
	ReadAt            *time.Time             `json:"read_at,omitempty"`
}

// NotificationDelivery records one channel a notification was owed to.
type NotificationDelivery struct {
	NotificationID uint    `gorm:"primaryKey;autoIncrement:false"`
	Channel        Channel `gorm:"primaryKey;type:text"`
	CreatedAt      time.Time
}

// HasChannel reports whether ch is among the delivered channels.
func (n *Notification) HasChannel(ch Channel) bool {
	for _, c := range n.DeliveredChannels {
		if c == ch {
			return true
		}
	}
	return false
}

// NotificationPreferences controls which external channels may be used for a user.
// Realtime push is not preference-gated.
type NotificationPreferences struct {
	UserID    string    `gorm:"primaryKey" json:"user_id"`
	Email     bool      `json:"email"`
	Push      bool      `json:"push"`
	SMS       bool      `json:"sms"`
	Language  string    `gorm:"not null" json:"language"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPreferences returns the record created lazily on a user's first notification.
func DefaultPreferences(userID string) NotificationPreferences {
	return NotificationPreferences{
		UserID:   userID,
		Email:    true,
		Push:     true,
		SMS:      true,
		Language: "en",
	}
}

// ExternalChannels lists the enabled preference-gated channels in a stable order.
func (p NotificationPreferences) ExternalChannels() []Channel {
	var out []Channel
	if p.Email {
		out = append(out, ChannelEmail)
	}
	if p.Push {
		out = append(out, ChannelPush)
	}
	if p.SMS {
		out = append(out, ChannelSMS)
	}
	return out
}
