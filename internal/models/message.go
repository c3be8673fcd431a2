package models

import "time"

// MessageKind is the content type of a Message.
type MessageKind string

const (
	KindText   MessageKind = "text"
	KindFile   MessageKind = "file"
	KindImage  MessageKind = "image"
	KindSystem MessageKind = "system"
)

// Valid reports whether k is one of the known kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindFile, KindImage, KindSystem:
		return true
	}
	return false
}

// Message represents a saved chat message. It is immutable once created,
// except for its reader set which lives in MessageRead rows.
type Message struct {
	// ID is assigned by the database and grows with insertion order,
	// so it doubles as the paging cursor.
	ID uint `gorm:"primaryKey;autoIncrement;index:idx_room_msg,priority:2" json:"id"`
	// RoomID is the room the message was posted in.
	RoomID string `gorm:"not null;index:idx_room_msg,priority:1" json:"room_id"`
	// SenderID is the user who sent the message.
	SenderID string `gorm:"not null" json:"sender_id"`
	// SenderRole is the marketplace role the sender acted in (e.g. "client", "provider").
	SenderRole string      `gorm:"not null" json:"sender_role"`
	Kind       MessageKind `gorm:"type:text;not null" json:"kind"`
	Body       string      `gorm:"type:text" json:"body"`
	// Attachments holds storage references for file and image messages.
	Attachments []string `gorm:"type:text;serializer:json" json:"attachments"`
	// ReadBy is filled from message_reads when messages are loaded.
	ReadBy    []string   `gorm:"-" json:"read_by"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}

// MessageRead records that a user has read a message. The composite
// primary key makes the reader set a union: inserting twice is a no-op.
type MessageRead struct {
	MessageID uint   `gorm:"primaryKey;autoIncrement:false"`
	UserID    string `gorm:"primaryKey"`
	ReadAt    time.Time
}

// IsReadBy reports whether userID is in the reader set.
func (m *Message) IsReadBy(userID string) bool {
	for _, r := range m.ReadBy {
		if r == userID {
			return true
		}
	}
	return false
}
