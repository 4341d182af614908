package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Tracker derives online/offline status from connection lifecycle events.
//
// Status is reference-counted per user id, not per connection: a user with
// two browser tabs open stays online when one tab closes, and transitions
// offline only when the last concurrent connection for that user id closes.
type Tracker struct {
	mu       sync.Mutex
	counts   map[string]int
	lastSeen map[string]time.Time

	hub *Hub
	log *zerolog.Logger
}

// NewTracker creates a presence tracker that publishes transition notices
// through the hub.
func NewTracker(hub *Hub, logger *zerolog.Logger) *Tracker {
	return &Tracker{
		counts:   make(map[string]int),
		lastSeen: make(map[string]time.Time),
		hub:      hub,
		log:      logger,
	}
}

// ConnectionOpened records a new live connection for the user. On the
// offline-to-online transition, rooms the user already occupies (via other
// connections there are none, via a reconnect race there may be) are
// notified.
func (t *Tracker) ConnectionOpened(userID, connID string) {
	t.mu.Lock()
	t.counts[userID]++
	first := t.counts[userID] == 1
	t.mu.Unlock()

	if !first {
		return
	}
	t.log.Debug().Str("user", userID).Str("conn_id", connID).Msg("user online")
	for _, roomID := range t.hub.RoomsOfUser(userID) {
		t.hub.Broadcast(roomID, &Event{Kind: EventPresence, Room: roomID, User: userID, Online: true})
	}
}

// ConnectionClosed records a closed connection for the user. rooms is the
// set of rooms the closing connection occupied, captured before its
// membership was torn down. On the online-to-offline transition last_seen
// is stamped with the closing time and every room the user occupied is
// notified.
func (t *Tracker) ConnectionClosed(userID, connID string, rooms []string) {
	t.mu.Lock()
	if t.counts[userID] == 0 {
		// Close without a matching open; nothing to do.
		t.mu.Unlock()
		return
	}
	t.counts[userID]--
	last := t.counts[userID] == 0
	var seen time.Time
	if last {
		delete(t.counts, userID)
		seen = time.Now()
		t.lastSeen[userID] = seen
	}
	t.mu.Unlock()

	if !last {
		return
	}
	t.log.Debug().Str("user", userID).Str("conn_id", connID).Msg("user offline")

	// The user's other connections are gone, so the rooms the closing
	// connection occupied are exactly the rooms the user occupied.
	notified := make(map[string]struct{}, len(rooms))
	for _, roomID := range rooms {
		if _, done := notified[roomID]; done {
			continue
		}
		notified[roomID] = struct{}{}
		t.hub.Broadcast(roomID, &Event{
			Kind:     EventPresence,
			Room:     roomID,
			User:     userID,
			Online:   false,
			LastSeen: seen,
		})
	}
}

// Status reports whether the user has at least one live connection, and
// the last-seen time stamped at the most recent offline transition.
func (t *Tracker) Status(userID string) (online bool, lastSeen time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.counts[userID] > 0, t.lastSeen[userID]
}
