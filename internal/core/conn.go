package core

import (
	"sync"
	"time"
)

// Conn is one live client session as seen by the core layer. It is owned
// by the Registry and destroyed exactly once, no matter which close path
// (client close, transport error, backpressure eviction) fires first.
type Conn struct {
	ID        string
	UserID    string
	Username  string
	CreatedAt time.Time

	// rooms is the connection's subscribed-room set. It is guarded by the
	// hub's lock, together with the matching room member sets, so the two
	// views can never diverge.
	rooms map[string]struct{}

	events    chan *Event
	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn constructs a connection handle with a buffered outbound channel.
func NewConn(id, userID, username string, sendBuffer int) *Conn {
	if username == "" {
		username = userID
	}
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &Conn{
		ID:        id,
		UserID:    userID,
		Username:  username,
		CreatedAt: time.Now(),
		rooms:     make(map[string]struct{}),
		events:    make(chan *Event, sendBuffer),
		closed:    make(chan struct{}),
	}
}

// Events exposes the outbound frame stream drained by the transport's
// write loop.
func (c *Conn) Events() <-chan *Event {
	return c.events
}

// Closed is closed when the connection has been shut down and no further
// events will be delivered.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

// TrySend enqueues an event without blocking. It reports false when the
// send buffer is full or the connection is already closed; a false return
// during fan-out marks the connection as a slow consumer.
func (c *Conn) TrySend(ev *Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// IsClosed reports whether Shutdown has run.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Shutdown cancels all pending sends to this connection. Safe to call
// multiple times.
func (c *Conn) Shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}
