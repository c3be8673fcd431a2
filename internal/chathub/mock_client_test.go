package chathub_test

import (
	"encoding/json"
	"sync"
	"time"

	"marketchat/backend/internal/models"

	"github.com/google/uuid"
)

// MockClient records every frame it is sent. Setting Fail makes Send return it.
type MockClient struct {
	userID string
	connID string

	mu     sync.Mutex
	frames [][]byte
	fail   error
	closed bool
}

func newMockClient(userID string) *MockClient {
	return &MockClient{
		userID: userID,
		connID: uuid.NewString(),
	}
}

func (c *MockClient) GetUserID() string      { return c.userID }
func (c *MockClient) GetConnID() string      { return c.connID }
func (c *MockClient) ConnectedAt() time.Time { return time.Time{} }

func (c *MockClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *MockClient) Fail(err error) {
	c.mu.Lock()
	c.fail = err
	c.mu.Unlock()
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Events decodes everything received so far.
func (c *MockClient) Events() []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Event, 0, len(c.frames))
	for _, f := range c.frames {
		var ev models.Event
		if err := json.Unmarshal(f, &ev); err == nil {
			out = append(out, ev)
		}
	}
	return out
}

func (c *MockClient) Types() []models.FrameType {
	var out []models.FrameType
	for _, ev := range c.Events() {
		out = append(out, ev.Type)
	}
	return out
}
