package core

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry tracks every live connection. It owns connection lifetime: a
// connection enters the system through Register and leaves, exactly once,
// through Deregister — whether the close came from the client, a transport
// error, or a backpressure eviction.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Conn

	hub      *Hub
	presence *Tracker
	log      *zerolog.Logger
}

// NewRegistry creates a registry and wires the hub's slow-consumer
// eviction into the standard disconnect cleanup path.
func NewRegistry(hub *Hub, presence *Tracker, logger *zerolog.Logger) *Registry {
	r := &Registry{
		conns:    make(map[string]*Conn),
		hub:      hub,
		presence: presence,
		log:      logger,
	}
	hub.OnSlowConsumer(func(c *Conn) {
		r.Deregister(c.ID)
	})
	return r
}

// Register adds a live connection and marks its user online.
func (r *Registry) Register(c *Conn) error {
	r.mu.Lock()
	if _, exists := r.conns[c.ID]; exists {
		r.mu.Unlock()
		return ErrDuplicateConnection
	}
	r.conns[c.ID] = c
	r.mu.Unlock()

	r.presence.ConnectionOpened(c.UserID, c.ID)
	r.log.Debug().Str("conn_id", c.ID).Str("user", c.UserID).Msg("connection registered")
	return nil
}

// Deregister removes the connection, tears down every room membership it
// held, and notifies the presence tracker — all before returning, so no
// stale membership survives a disconnect. Deregistering an unknown id is a
// no-op: disconnect notifications may race with explicit cleanup, and only
// the caller that actually removes the id runs the teardown.
func (r *Registry) Deregister(connID string) {
	r.mu.Lock()
	c, exists := r.conns[connID]
	if exists {
		delete(r.conns, connID)
	}
	r.mu.Unlock()

	if !exists {
		return
	}

	// Shutdown before room teardown: once the connection is closed the hub
	// refuses new joins, so a frame processed by the read loop after this
	// point cannot re-add a membership RemoveAll would miss.
	c.Shutdown()
	rooms := r.hub.RemoveAll(c)
	r.presence.ConnectionClosed(c.UserID, c.ID, rooms)
	r.log.Debug().Str("conn_id", c.ID).Str("user", c.UserID).Int("rooms", len(rooms)).
		Msg("connection deregistered")
}

// Lookup resolves a connection id to its owning user id.
func (r *Registry) Lookup(connID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.conns[connID]
	if !exists {
		return "", ErrNotFound
	}
	return c.UserID, nil
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.conns)
}
