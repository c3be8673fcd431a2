package chathub

import (
	"errors"
	"time"
)

var (
	// ErrClientClosed is returned by Send once the connection has been closed.
	ErrClientClosed = errors.New("client closed")
	// ErrSendBufferFull is returned by Send when the client cannot keep up.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client is one live connection belonging to a user. A user may hold several
// at once (multi-device). The hub only ever talks to connections through this
// interface, so tests can substitute in-memory clients.
type Client interface {
	// GetUserID returns the identity that owns the connection.
	GetUserID() string
	// GetConnID returns an id unique to this connection.
	GetConnID() string
	// ConnectedAt returns when the connection was accepted.
	ConnectedAt() time.Time

	// Send queues an encoded frame for delivery. It must not block; an error
	// means the connection is dead or too slow and should be dropped.
	Send(data []byte) error

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the connection down. It is safe to call more than once.
	Close()
}

// TransportError is a failed send on a single connection. It never leaves the Dispatcher.
type TransportError struct {
	UserID string
	ConnID string
	Err    error
}

func (e *TransportError) Error() string {
	return "transport: user " + e.UserID + " conn " + e.ConnID + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }
