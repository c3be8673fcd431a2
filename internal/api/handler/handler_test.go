package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"marketchat/backend/internal/api/handler"
	"marketchat/backend/internal/api/middleware"
	"marketchat/backend/internal/chat"
	"marketchat/backend/internal/chathub"
	"marketchat/backend/internal/localization"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/notification"
	"marketchat/backend/internal/storage/storagetest"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type api struct {
	t      *testing.T
	router *gin.Engine
	tokens *middleware.Tokens
	hub    *chathub.Dispatcher
}

func newAPI(t *testing.T) *api {
	t.Helper()
	store, _ := storagetest.New(t)
	loc, err := localization.NewLocalizer("../../localization/locales")
	require.NoError(t, err)

	hub := chathub.NewDispatcher(chathub.NewRegistry(), chathub.NewPresence(), nil)
	notifications := notification.NewService(store, hub, loc, nil)
	chats := chat.NewService(store, hub, notifications, nil, 50)
	tokens := middleware.NewTokens("test-secret", time.Hour)

	h := handler.NewHandler(hub, chats, notifications, tokens, nil)
	h.DevTokens = true
	r := gin.New()
	h.Register(r)
	return &api{t: t, router: r, tokens: tokens, hub: hub}
}

func (a *api) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := a.tokens.Issue(userID)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *api) createRoom(userID, counterpart string) models.Room {
	w := a.do(http.MethodPost, "/rooms", userID, gin.H{"counterpart_id": counterpart})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return decode[models.Room](a.t, w)
}

func TestIssueToken(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/auth/token", "", gin.H{"user_id": "alice"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]string](t, w)

	userID, err := a.tokens.Validate(resp["token"])
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	w = a.do(http.MethodPost, "/auth/token", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutesRequireAuth(t *testing.T) {
	a := newAPI(t)
	for _, path := range []string{"/rooms", "/notifications", "/notifications/unread-count", "/ws/alice"} {
		w := a.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRoomLifecycle(t *testing.T) {
	a := newAPI(t)

	room := a.createRoom("alice", "bob")
	again := a.createRoom("bob", "alice")
	assert.Equal(t, room.ID, again.ID)

	w := a.do(http.MethodPost, "/rooms/"+room.ID+"/messages", "alice", gin.H{"sender_role": "client", "kind": "text", "body": "Hello"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	msg := decode[models.Message](t, w)
	assert.Equal(t, "Hello", msg.Body)

	w = a.do(http.MethodGet, "/rooms/"+room.ID+"/messages?limit=10", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]models.Message](t, w)
	require.Len(t, history, 1)
	assert.Equal(t, []string{"bob"}, history[0].ReadBy)

	w = a.do(http.MethodGet, "/rooms", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Room](t, w), 1)

	w = a.do(http.MethodPost, "/rooms/"+room.ID+"/read", "bob", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(http.MethodPost, "/rooms/"+room.ID+"/archive", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoomArchived, decode[models.Room](t, w).Status)

	w = a.do(http.MethodPost, "/rooms/"+room.ID+"/messages", "alice", gin.H{"sender_role": "client", "kind": "text", "body": "still there?"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodPost, "/rooms/"+room.ID+"/block", "alice", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRoomErrors(t *testing.T) {
	a := newAPI(t)
	room := a.createRoom("alice", "bob")

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		status int
	}{
		{"outsider sends", http.MethodPost, "/rooms/" + room.ID + "/messages", "carol", gin.H{"sender_role": "client", "kind": "text", "body": "hi"}, http.StatusForbidden},
		{"outsider reads", http.MethodGet, "/rooms/" + room.ID + "/messages", "carol", nil, http.StatusForbidden},
		{"unknown room", http.MethodPost, "/rooms/nope/messages", "alice", gin.H{"sender_role": "client", "kind": "text", "body": "hi"}, http.StatusNotFound},
		{"bad kind", http.MethodPost, "/rooms/" + room.ID + "/messages", "alice", gin.H{"sender_role": "client", "kind": "video", "body": "hi"}, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/rooms/" + room.ID + "/messages", "alice", gin.H{"sender_role": "client", "kind": "text", "body": ""}, http.StatusBadRequest},
		{"self room", http.MethodPost, "/rooms", "alice", gin.H{"counterpart_id": "alice"}, http.StatusBadRequest},
		{"limit too large", http.MethodGet, "/rooms/" + room.ID + "/messages?limit=1000", "alice", nil, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := a.do(tc.method, tc.path, tc.user, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestNotificationRoutes(t *testing.T) {
	a := newAPI(t)
	room := a.createRoom("alice", "bob")

	w := a.do(http.MethodPost, "/rooms/"+room.ID+"/messages", "alice", gin.H{"sender_role": "client", "kind": "text", "body": "ping"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(http.MethodGet, "/notifications/unread-count", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["unread"])

	w = a.do(http.MethodGet, "/notifications?unread=true", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]models.Notification](t, w)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].DeliveredChannels, models.ChannelEmail)

	id := list[0].ID
	w = a.do(http.MethodPost, "/notifications/"+itoa(id)+"/read", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "not alice's notification")

	w = a.do(http.MethodPost, "/notifications/"+itoa(id)+"/read", "bob", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(http.MethodPost, "/notifications/abc/read", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/notifications/unread-count", "bob", nil)
	assert.Equal(t, float64(0), decode[map[string]any](t, w)["unread"])
}

func TestPreferencesRoutes(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/notifications/preferences", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	prefs := decode[models.NotificationPreferences](t, w)
	assert.True(t, prefs.SMS)

	w = a.do(http.MethodPut, "/notifications/preferences", "bob", gin.H{"sms": false, "language": "uk"})
	require.Equal(t, http.StatusOK, w.Code)
	prefs = decode[models.NotificationPreferences](t, w)
	assert.False(t, prefs.SMS)
	assert.True(t, prefs.Email)
	assert.Equal(t, "uk", prefs.Language)

	w = a.do(http.MethodPut, "/notifications/preferences", "bob", gin.H{"language": "klingon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebSocketUpgrade(t *testing.T) {
	a := newAPI(t)
	room := a.createRoom("alice", "bob")

	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)
	token, err := a.tokens.Issue("bob")
	require.NoError(t, err)
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws/alice?token="+token, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/bob?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(models.InboundFrame{Type: models.FrameJoinRoom, RoomID: room.ID}))
	require.Eventually(t, func() bool { return a.hub.IsPresent("bob", room.ID) }, time.Second, 10*time.Millisecond)

	w := a.do(http.MethodPost, "/rooms/"+room.ID+"/messages", "alice", gin.H{"sender_role": "client", "kind": "text", "body": "live"})
	require.Equal(t, http.StatusCreated, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev models.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.FrameNewMessage, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "live", ev.Message.Body)

	w = a.do(http.MethodGet, "/notifications/unread-count", "bob", nil)
	assert.Equal(t, float64(0), decode[map[string]any](t, w)["unread"], "bob was watching the room")
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
