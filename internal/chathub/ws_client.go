package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"marketchat/backend/internal/config"
	"marketchat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const accessCheckTimeout = 5 * time.Second

// RoomAccess answers whether a user may become present in a room.
type RoomAccess interface {
	CanAccess(ctx context.Context, roomID, userID string) (bool, error)
}

// WebSocketClient implements Client over a gorilla WebSocket connection.
type WebSocketClient struct {
	UserID    string
	ConnID    string
	CreatedAt time.Time
	Conn      *websocket.Conn
	Hub       *Dispatcher
	Access    RoomAccess
	Log       *zap.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewWebSocketClient(conn *websocket.Conn, userID string, hub *Dispatcher, access RoomAccess, log *zap.Logger, buffer int) *WebSocketClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketClient{
		UserID:    userID,
		ConnID:    uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Conn:      conn,
		Hub:       hub,
		Access:    access,
		Log:       log.With(zap.String("user_id", userID)),
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
	}
}

// --- Client ---

func (c *WebSocketClient) GetUserID() string      { return c.UserID }
func (c *WebSocketClient) GetConnID() string      { return c.ConnID }
func (c *WebSocketClient) ConnectedAt() time.Time { return c.CreatedAt }

// Send queues data for the write pump without blocking.
func (c *WebSocketClient) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendBufferFull
	}
}

// Run registers the client with the hub and starts its pumps.
func (c *WebSocketClient) Run() {
	c.Hub.Connect(c)
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which closes the socket; the read pump then exits.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// --- pumps ---

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Disconnect(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Log.Info("websocket read failed", zap.Error(err))
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		c.handleFrame(message)
	}
}

func (c *WebSocketClient) handleFrame(raw []byte) {
	frame, err := models.DecodeInboundFrame(raw)
	if err != nil {
		code := "malformed_frame"
		if errors.Is(err, models.ErrUnknownFrame) {
			code = "unknown_frame"
		}
		c.reply(models.ErrorEvent(code, err.Error()))
		return
	}

	switch frame.Type {
	case models.FramePing:
		c.reply(models.PongEvent())

	case models.FrameJoinRoom:
		ctx, cancel := context.WithTimeout(context.Background(), accessCheckTimeout)
		ok, err := c.Access.CanAccess(ctx, frame.RoomID, c.UserID)
		cancel()
		if err != nil {
			c.Log.Error("room access check failed", zap.String("room_id", frame.RoomID), zap.Error(err))
			c.reply(models.ErrorEvent("internal", "could not join room"))
			return
		}
		if !ok {
			c.reply(models.ErrorEvent("forbidden", "not a member of room "+frame.RoomID))
			return
		}
		c.Hub.Join(c.UserID, frame.RoomID)

	case models.FrameLeaveRoom:
		c.Hub.Leave(c.UserID, frame.RoomID)
	}
}

// reply answers this connection only.
func (c *WebSocketClient) reply(ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		c.Log.Error("failed to encode reply", zap.Error(err))
		return
	}
	if err := c.Send(data); err != nil {
		c.Log.Debug("reply dropped", zap.Error(err))
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			if err := c.write(message); err != nil {
				c.Log.Debug("websocket write failed", zap.Error(err))
				c.Close()
				return
			}
			// flush whatever queued up meanwhile, one frame per event
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.write(<-c.send); err != nil {
					c.Close()
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *WebSocketClient) write(data []byte) error {
	c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}
