package core

import (
	"sync"

	"github.com/rs/zerolog"
)

// Hub owns the per-room broadcast groups. Membership is kept bidirectionally
// consistent under one lock: a connection is in a room's member set iff the
// room id is in the connection's subscribed-room set.
//
// Rooms are created implicitly on first join and persist when emptied;
// access checks for private rooms are the directory collaborator's job and
// happen before Join is called. A membership grant revoked mid-session does
// not evict an already-joined connection.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room
	evict func(*Conn)
	log   *zerolog.Logger
}

// NewHub creates a hub with no rooms.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]*room),
		log:   logger,
	}
}

// OnSlowConsumer installs the eviction path for members whose send buffer
// is full during fan-out. Wired to the registry's deregistration.
func (h *Hub) OnSlowConsumer(fn func(*Conn)) {
	h.evict = fn
}

// Join subscribes the connection to the room, creating the room on first
// join. Re-joining is a no-op. Members, including the joiner, are notified
// on an actual join.
//
// A shut-down connection is refused: its read loop may still be draining
// frames after an eviction has already run the disconnect cleanup, and a
// late join must not resurrect membership nothing would ever tear down.
func (h *Hub) Join(roomID string, c *Conn) bool {
	h.mu.Lock()
	if c.IsClosed() {
		h.mu.Unlock()
		return false
	}
	r, ok := h.rooms[roomID]
	if !ok {
		r = newRoom(roomID)
		h.rooms[roomID] = r
	}
	added := r.add(c)
	if added {
		c.rooms[roomID] = struct{}{}
	}
	h.mu.Unlock()

	if added {
		h.Broadcast(roomID, &Event{Kind: EventMemberJoined, Room: roomID, User: c.Username})
		h.log.Debug().Str("room", roomID).Str("conn_id", c.ID).Str("user", c.UserID).Msg("joined room")
	}
	return added
}

// Leave unsubscribes the connection from the room. Leaving a room the
// connection is not in is a no-op.
func (h *Hub) Leave(roomID string, c *Conn) bool {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	removed := ok && r.remove(c)
	if removed {
		delete(c.rooms, roomID)
	}
	h.mu.Unlock()

	if removed {
		h.Broadcast(roomID, &Event{Kind: EventMemberLeft, Room: roomID, User: c.Username})
		h.log.Debug().Str("room", roomID).Str("conn_id", c.ID).Str("user", c.UserID).Msg("left room")
	}
	return removed
}

// Broadcast fans the event out to every current member and returns the
// delivered count. A member whose send buffer is full is not waited on:
// it is handed to the eviction path so one unresponsive client cannot
// delay delivery to the rest of the room.
func (h *Hub) Broadcast(roomID string, ev *Event) int {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	var delivered int
	var slow []*Conn
	if ok {
		delivered, slow = r.fanOut(ev)
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("room", roomID).Str("conn_id", c.ID).Str("user", c.UserID).
			Msg("evicting slow consumer")
		if h.evict != nil {
			h.evict(c)
		}
	}
	return delivered
}

// Members returns the connection ids currently subscribed to the room.
func (h *Hub) Members(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(r.conns))
	for c := range r.conns {
		ids = append(ids, c.ID)
	}
	return ids
}

// IsMember reports whether the connection is subscribed to the room.
func (h *Hub) IsMember(roomID string, c *Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := c.rooms[roomID]
	return ok
}

// RoomsOf returns the rooms the connection is currently subscribed to.
func (h *Hub) RoomsOf(c *Conn) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	return rooms
}

// RoomsOfUser returns the rooms occupied by any live connection of the
// user. Used by the presence tracker to address transition notices.
func (h *Hub) RoomsOfUser(userID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var rooms []string
	for id, r := range h.rooms {
		for c := range r.conns {
			if c.UserID == userID {
				rooms = append(rooms, id)
				break
			}
		}
	}
	return rooms
}

// RemoveAll unsubscribes the connection from every room it had joined,
// notifying each room, and returns the rooms left. Part of the disconnect
// cleanup path.
func (h *Hub) RemoveAll(c *Conn) []string {
	h.mu.Lock()
	left := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		if r, ok := h.rooms[id]; ok {
			r.remove(c)
		}
		delete(c.rooms, id)
		left = append(left, id)
	}
	h.mu.Unlock()

	for _, id := range left {
		h.Broadcast(id, &Event{Kind: EventMemberLeft, Room: id, User: c.Username})
	}
	return left
}
