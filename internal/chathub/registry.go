package chathub

import (
	"sync"

	"github.com/samber/lo"
)

// Registry tracks the live connections of every user. It is process-local and
// starts empty: clients re-establish themselves after a restart.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]Client // userID -> connID -> client
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]map[string]Client),
	}
}

// Register adds a connection to the user's set. There is no per-user limit.
func (r *Registry) Register(userID string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]Client)
		r.conns[userID] = set
	}
	set[c.GetConnID()] = c
}

// Unregister removes one connection. Removing an unknown connection is a no-op.
// It reports whether this call removed it and how many connections the user has left;
// the user entry is dropped when none remain.
func (r *Registry) Unregister(userID string, c Client) (removed bool, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return false, 0
	}
	if _, ok := set[c.GetConnID()]; ok {
		delete(set, c.GetConnID())
		removed = true
	}
	remaining = len(set)
	if remaining == 0 {
		delete(r.conns, userID)
	}
	return removed, remaining
}

func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// ConnectionsOf returns a snapshot of the user's connections. Entries may go
// stale between the snapshot and their use.
func (r *Registry) ConnectionsOf(userID string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.conns[userID])
}

// UserCount returns the number of users with at least one connection.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
