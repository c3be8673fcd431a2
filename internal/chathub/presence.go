package chathub

import (
	"sync"

	"github.com/samber/lo"
)

type set map[string]struct{}

// Presence records which users are actively viewing which rooms. It is
// advisory: a missing entry means "assume offline", never "definitely offline".
// Presence is keyed by user, not by connection.
type Presence struct {
	mu    sync.RWMutex
	rooms map[string]set // roomID -> present users
	users map[string]set // userID -> rooms the user is present in
}

func NewPresence() *Presence {
	return &Presence{
		rooms: make(map[string]set),
		users: make(map[string]set),
	}
}

// Add marks userID present in roomID. It reports false if already present.
func (p *Presence) Add(userID, roomID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.rooms[roomID][userID]; ok {
		return false
	}
	if p.rooms[roomID] == nil {
		p.rooms[roomID] = make(set)
	}
	if p.users[userID] == nil {
		p.users[userID] = make(set)
	}
	p.rooms[roomID][userID] = struct{}{}
	p.users[userID][roomID] = struct{}{}
	return true
}

// Remove marks userID absent from roomID. Empty entries are dropped so memory
// stays bounded by current presence. It reports false if the user was not present.
func (p *Presence) Remove(userID, roomID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	members, ok := p.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := members[userID]; !ok {
		return false
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(p.rooms, roomID)
	}
	if rooms, ok := p.users[userID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(p.users, userID)
		}
	}
	return true
}

// MembersOf returns a snapshot of the users present in a room.
func (p *Presence) MembersOf(roomID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.Keys(p.rooms[roomID])
}

// RoomsOf returns a snapshot of the rooms a user is present in.
func (p *Presence) RoomsOf(userID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.Keys(p.users[userID])
}

func (p *Presence) IsPresent(userID, roomID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.rooms[roomID][userID]
	return ok
}

// RoomCount returns the number of rooms with at least one present user.
func (p *Presence) RoomCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rooms)
}
