package chathub_test

import (
	"fmt"
	"sync"
	"testing"

	"marketchat/backend/internal/chathub"
	"marketchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher() *chathub.Dispatcher {
	return chathub.NewDispatcher(chathub.NewRegistry(), chathub.NewPresence(), nil)
}

func TestDispatcher_SendToUserReachesEveryDevice(t *testing.T) {
	d := newDispatcher()
	phone := newMockClient("alice")
	laptop := newMockClient("alice")
	d.Connect(phone)
	d.Connect(laptop)

	ok := d.SendToUser("alice", models.PongEvent())

	assert.True(t, ok)
	assert.Equal(t, []models.FrameType{models.FramePong}, phone.Types())
	assert.Equal(t, []models.FrameType{models.FramePong}, laptop.Types())
}

func TestDispatcher_SendToUserOffline(t *testing.T) {
	d := newDispatcher()
	assert.False(t, d.SendToUser("nobody", models.PongEvent()))
}

func TestDispatcher_PrunesDeadConnection(t *testing.T) {
	d := newDispatcher()
	alive := newMockClient("alice")
	dead := newMockClient("alice")
	dead.Fail(chathub.ErrSendBufferFull)
	d.Connect(alive)
	d.Connect(dead)

	ok := d.SendToUser("alice", models.PongEvent())

	assert.True(t, ok, "one healthy connection is enough")
	assert.True(t, dead.IsClosed())
	assert.Len(t, d.Registry.ConnectionsOf("alice"), 1)
	assert.Len(t, alive.Events(), 1)
}

func TestDispatcher_AllConnectionsDead(t *testing.T) {
	d := newDispatcher()
	dead := newMockClient("alice")
	dead.Fail(chathub.ErrClientClosed)
	d.Connect(dead)
	d.Join("alice", "room-1")

	assert.False(t, d.SendToUser("alice", models.PongEvent()))
	assert.False(t, d.IsConnected("alice"))
	assert.False(t, d.IsPresent("alice", "room-1"), "last connection gone leaves every room")
}

func TestDispatcher_BroadcastExcludes(t *testing.T) {
	d := newDispatcher()
	alice := newMockClient("alice")
	bob := newMockClient("bob")
	carol := newMockClient("carol")
	for _, c := range []*MockClient{alice, bob, carol} {
		d.Connect(c)
	}
	d.Join("alice", "room-1")
	d.Join("bob", "room-1")

	n := d.BroadcastToRoom("room-1", models.PongEvent(), "alice")

	assert.Equal(t, 1, n)
	assert.NotContains(t, alice.Types(), models.FramePong)
	assert.Contains(t, bob.Types(), models.FramePong)
	assert.Empty(t, carol.Events(), "not present in the room")
}

func TestDispatcher_BroadcastSkipsPresentButDisconnected(t *testing.T) {
	d := newDispatcher()
	d.Presence.Add("ghost", "room-1")

	assert.Equal(t, 0, d.BroadcastToRoom("room-1", models.PongEvent(), ""))
}

func TestDispatcher_JoinAndLeaveAnnounce(t *testing.T) {
	d := newDispatcher()
	alice := newMockClient("alice")
	bob := newMockClient("bob")
	d.Connect(alice)
	d.Connect(bob)

	require.True(t, d.Join("alice", "room-1"))
	require.True(t, d.Join("bob", "room-1"))
	assert.False(t, d.Join("bob", "room-1"))

	events := alice.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.FrameUserJoined, events[0].Type)
	assert.Equal(t, "bob", events[0].UserID)
	assert.Empty(t, bob.Events(), "the joiner is not told about itself")

	require.True(t, d.Leave("bob", "room-1"))
	assert.False(t, d.Leave("bob", "room-1"))

	events = alice.Events()
	require.Len(t, events, 2)
	assert.Equal(t, models.FrameUserLeft, events[1].Type)
	assert.Equal(t, "room-1", events[1].RoomID)
}

func TestDispatcher_DisconnectKeepsPresenceWhileOtherDeviceOnline(t *testing.T) {
	d := newDispatcher()
	phone := newMockClient("alice")
	laptop := newMockClient("alice")
	bob := newMockClient("bob")
	d.Connect(phone)
	d.Connect(laptop)
	d.Connect(bob)
	d.Join("alice", "room-1")
	d.Join("bob", "room-1")

	d.Disconnect(phone)
	assert.True(t, phone.IsClosed())
	assert.True(t, d.IsPresent("alice", "room-1"))

	d.Disconnect(laptop)
	assert.False(t, d.IsPresent("alice", "room-1"))
	assert.Contains(t, bob.Types(), models.FrameUserLeft)

	d.Disconnect(laptop)
	assert.False(t, d.IsConnected("alice"))
}

func TestDispatcher_JoinRequiresConnection(t *testing.T) {
	d := newDispatcher()
	alice := newMockClient("alice")
	d.Connect(alice)
	d.Join("alice", "room-1")

	assert.False(t, d.Join("bob", "room-1"), "bob never connected")
	assert.False(t, d.IsPresent("bob", "room-1"))
	assert.Empty(t, alice.Types())
}

func TestDispatcher_PrunedClientCannotRejoin(t *testing.T) {
	d := newDispatcher()
	alice := newMockClient("alice")
	bob := newMockClient("bob")
	d.Connect(alice)
	d.Connect(bob)
	d.Join("alice", "room-1")
	bob.Fail(chathub.ErrSendBufferFull)

	// bob's handle is dropped, but its read side may still deliver a join_room
	assert.False(t, d.SendToUser("bob", models.PongEvent()))
	assert.False(t, d.Join("bob", "room-1"))
	d.Disconnect(bob)

	assert.False(t, d.IsConnected("bob"))
	assert.False(t, d.IsPresent("bob", "room-1"))
	assert.Empty(t, d.Presence.RoomsOf("bob"))
	assert.NotContains(t, alice.Types(), models.FrameUserJoined)

	again := newMockClient("bob")
	d.Connect(again)
	assert.False(t, d.IsPresent("bob", "room-1"), "a new connection starts outside every room")
}

func TestDispatcher_ConcurrentJoinLeaveDisconnect(t *testing.T) {
	d := newDispatcher()
	rooms := []string{"room-1", "room-2", "room-3"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		userID := fmt.Sprintf("user-%d", i%5)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newMockClient(userID)
			if i%4 == 0 {
				c.Fail(chathub.ErrSendBufferFull)
			}
			d.Connect(c)
			for j := 0; j < 50; j++ {
				room := rooms[(i+j)%len(rooms)]
				d.Join(userID, room)
				d.BroadcastToRoom(room, models.PongEvent(), "")
				if j%3 == 0 {
					d.Leave(userID, room)
				}
			}
			d.Disconnect(c)
			d.Join(userID, rooms[0])
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, d.Registry.UserCount())
	assert.Equal(t, 0, d.Presence.RoomCount(), "presence never outlives the last connection")
}
