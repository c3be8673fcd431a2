package chathub_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketchat/backend/internal/chathub"
	"marketchat/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allowRooms map[string]bool

func (a allowRooms) CanAccess(_ context.Context, roomID, _ string) (bool, error) {
	return a[roomID], nil
}

func startWSServer(t *testing.T, d *chathub.Dispatcher, access chathub.RoomAccess) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		chathub.NewWebSocketClient(conn, "alice", d, access, nil, 16).Run()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()
	var ev models.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebSocketClient_PingPong(t *testing.T) {
	d := newDispatcher()
	conn := startWSServer(t, d, allowRooms{})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	ev := readEvent(t, conn)
	assert.Equal(t, models.FramePong, ev.Type)
}

func TestWebSocketClient_JoinAndLeave(t *testing.T) {
	d := newDispatcher()
	conn := startWSServer(t, d, allowRooms{"room-1": true})

	require.NoError(t, conn.WriteJSON(models.InboundFrame{Type: models.FrameJoinRoom, RoomID: "room-1"}))
	assert.Eventually(t, func() bool { return d.IsPresent("alice", "room-1") }, time.Second, 10*time.Millisecond)

	require.True(t, d.SendToUser("alice", models.PongEvent()))
	assert.Equal(t, models.FramePong, readEvent(t, conn).Type)

	require.NoError(t, conn.WriteJSON(models.InboundFrame{Type: models.FrameLeaveRoom, RoomID: "room-1"}))
	assert.Eventually(t, func() bool { return !d.IsPresent("alice", "room-1") }, time.Second, 10*time.Millisecond)
}

func TestWebSocketClient_JoinDenied(t *testing.T) {
	d := newDispatcher()
	conn := startWSServer(t, d, allowRooms{})

	require.NoError(t, conn.WriteJSON(models.InboundFrame{Type: models.FrameJoinRoom, RoomID: "room-x"}))

	ev := readEvent(t, conn)
	require.Equal(t, models.FrameError, ev.Type)
	assert.Equal(t, "forbidden", ev.Error.Code)
	assert.False(t, d.IsPresent("alice", "room-x"))
}

func TestWebSocketClient_BadFrames(t *testing.T) {
	d := newDispatcher()
	conn := startWSServer(t, d, allowRooms{})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	ev := readEvent(t, conn)
	require.Equal(t, models.FrameError, ev.Type)
	assert.Equal(t, "malformed_frame", ev.Error.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	ev = readEvent(t, conn)
	require.Equal(t, models.FrameError, ev.Type)
	assert.Equal(t, "unknown_frame", ev.Error.Code)
}

func TestWebSocketClient_DisconnectUnregisters(t *testing.T) {
	d := newDispatcher()
	conn := startWSServer(t, d, allowRooms{"room-1": true})

	require.NoError(t, conn.WriteJSON(models.InboundFrame{Type: models.FrameJoinRoom, RoomID: "room-1"}))
	require.Eventually(t, func() bool { return d.IsPresent("alice", "room-1") }, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return !d.IsConnected("alice") }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, d.IsPresent("alice", "room-1"))
}

func TestWebSocketClient_SendAfterClose(t *testing.T) {
	c := chathub.NewWebSocketClient(nil, "alice", newDispatcher(), allowRooms{}, nil, 1)

	require.NoError(t, c.Send([]byte("a")))
	assert.ErrorIs(t, c.Send([]byte("b")), chathub.ErrSendBufferFull)

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Send([]byte("c")), chathub.ErrClientClosed)
}
