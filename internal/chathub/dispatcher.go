package chathub

import (
	"encoding/json"
	"sync"

	"marketchat/backend/internal/models"

	"go.uber.org/zap"
)

// Dispatcher delivers events to users and rooms and keeps Registry and Presence
// consistent when connections die. Delivery is best effort, at most once per
// registered connection: there are no retries and nothing is queued for
// clients that reconnect later.
type Dispatcher struct {
	Registry *Registry
	Presence *Presence
	Log      *zap.Logger

	// mu orders presence changes against registering and removing connections,
	// so a user with no connection is never present anywhere.
	mu sync.Mutex
}

func NewDispatcher(reg *Registry, presence *Presence, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		Registry: reg,
		Presence: presence,
		Log:      log,
	}
}

// Connect registers a freshly accepted connection.
func (d *Dispatcher) Connect(c Client) {
	d.mu.Lock()
	d.Registry.Register(c.GetUserID(), c)
	d.mu.Unlock()
	d.Log.Debug("client connected", zap.String("user_id", c.GetUserID()), zap.String("conn_id", c.GetConnID()))
}

// Disconnect unregisters a connection and closes it. When it was the user's
// last connection, the user leaves every room it was present in.
func (d *Dispatcher) Disconnect(c Client) {
	d.drop(c.GetUserID(), c)
}

// SendToUser delivers ev on every connection of userID. Connections whose send
// fails are dropped. It reports whether at least one connection accepted the event.
func (d *Dispatcher) SendToUser(userID string, ev models.Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		d.Log.Error("failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return false
	}
	return d.deliver(userID, data)
}

// BroadcastToRoom delivers ev to every user present in roomID except
// excludeUserID (empty excludes nobody). It returns how many users received it.
func (d *Dispatcher) BroadcastToRoom(roomID string, ev models.Event, excludeUserID string) int {
	data, err := json.Marshal(ev)
	if err != nil {
		d.Log.Error("failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return 0
	}

	delivered := 0
	for _, userID := range d.Presence.MembersOf(roomID) {
		if userID == excludeUserID {
			continue
		}
		if d.deliver(userID, data) {
			delivered++
		}
	}
	return delivered
}

// Join marks userID present in roomID and tells the other present users.
// Users without a registered connection cannot join.
func (d *Dispatcher) Join(userID, roomID string) bool {
	d.mu.Lock()
	joined := d.Registry.IsConnected(userID) && d.Presence.Add(userID, roomID)
	d.mu.Unlock()
	if !joined {
		return false
	}
	d.BroadcastToRoom(roomID, models.UserJoinedEvent(roomID, userID), userID)
	return true
}

// Leave marks userID absent from roomID and tells the remaining users.
func (d *Dispatcher) Leave(userID, roomID string) bool {
	d.mu.Lock()
	left := d.Presence.Remove(userID, roomID)
	d.mu.Unlock()
	if !left {
		return false
	}
	d.BroadcastToRoom(roomID, models.UserLeftEvent(roomID, userID), userID)
	return true
}

func (d *Dispatcher) IsConnected(userID string) bool {
	return d.Registry.IsConnected(userID)
}

func (d *Dispatcher) IsPresent(userID, roomID string) bool {
	return d.Presence.IsPresent(userID, roomID)
}

func (d *Dispatcher) deliver(userID string, data []byte) bool {
	delivered := false
	for _, c := range d.Registry.ConnectionsOf(userID) {
		if err := c.Send(data); err != nil {
			d.Log.Warn("dropping connection",
				zap.String("user_id", userID),
				zap.Error(&TransportError{UserID: userID, ConnID: c.GetConnID(), Err: err}))
			d.drop(userID, c)
			continue
		}
		delivered = true
	}
	return delivered
}

func (d *Dispatcher) drop(userID string, c Client) {
	var left []string
	d.mu.Lock()
	removed, remaining := d.Registry.Unregister(userID, c)
	if removed && remaining == 0 {
		for _, roomID := range d.Presence.RoomsOf(userID) {
			if d.Presence.Remove(userID, roomID) {
				left = append(left, roomID)
			}
		}
	}
	d.mu.Unlock()

	c.Close()
	if !removed || remaining > 0 {
		return
	}
	d.Log.Debug("user disconnected", zap.String("user_id", userID), zap.Int("rooms_left", len(left)))
	for _, roomID := range left {
		d.BroadcastToRoom(roomID, models.UserLeftEvent(roomID, userID), userID)
	}
}
