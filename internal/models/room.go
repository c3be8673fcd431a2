package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoomStatus is the lifecycle state of a Room.
type RoomStatus string

const (
	RoomActive   RoomStatus = "active"
	RoomArchived RoomStatus = "archived"
	RoomBlocked  RoomStatus = "blocked"
)

// Room represents a durable conversation between exactly two counterparties,
// optionally linked to a business object such as a quote.
type Room struct {
	// ID is the unique identifier for the room (UUID).
	ID string `gorm:"primaryKey" json:"id"`
	// CounterpartAID is the user who opened the conversation.
	CounterpartAID string `gorm:"not null;index" json:"counterpart_a_id"`
	// CounterpartBID is the other party.
	CounterpartBID string `gorm:"not null;index" json:"counterpart_b_id"`
	// PairKey is the order-independent key of the two counterparties.
	// Its unique index makes room creation idempotent on the pair.
	PairKey string `gorm:"not null;uniqueIndex" json:"-"`
	// LinkedObjectID optionally points at the business object the chat is about.
	LinkedObjectID *string `json:"linked_object_id,omitempty"`
	Status         RoomStatus `gorm:"type:text;not null" json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	// LastActivityAt is bumped on every message.
	LastActivityAt time.Time `gorm:"index" json:"last_activity_at"`
}

// PairKey returns the same key for (a, b) and (b, a). The length prefix keeps
// ids that contain the separator from colliding.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strconv.Itoa(len(a)) + ":" + a + "|" + b
}

// BeforeCreate fills in the UUID, pair key and initial status.
func (r *Room) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.PairKey == "" {
		r.PairKey = PairKey(r.CounterpartAID, r.CounterpartBID)
	}
	if r.Status == "" {
		r.Status = RoomActive
	}
	return
}

// HasMember reports whether userID is one of the two counterparties.
func (r *Room) HasMember(userID string) bool {
	return userID != "" && (r.CounterpartAID == userID || r.CounterpartBID == userID)
}

// Counterpart returns the other party of the room as seen by userID.
func (r *Room) Counterpart(userID string) (string, bool) {
	switch userID {
	case r.CounterpartAID:
		return r.CounterpartBID, true
	case r.CounterpartBID:
		return r.CounterpartAID, true
	}
	return "", false
}

func (r *Room) IsActive() bool { return r.Status == RoomActive }
