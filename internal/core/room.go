package core

// room is a broadcast group of live connections. Directory metadata
// (display name, visibility) lives in the room directory collaborator;
// this holds only the transient member set, rebuilt from live connections.
type room struct {
	id    string
	conns map[*Conn]struct{}
}

func newRoom(id string) *room {
	return &room{
		id:    id,
		conns: make(map[*Conn]struct{}),
	}
}

// add inserts a connection. Returns true if newly added.
func (r *room) add(c *Conn) bool {
	if _, exists := r.conns[c]; exists {
		return false
	}
	r.conns[c] = struct{}{}
	return true
}

// remove deletes a connection. Returns true if it was a member.
func (r *room) remove(c *Conn) bool {
	if _, exists := r.conns[c]; !exists {
		return false
	}
	delete(r.conns, c)
	return true
}

// fanOut offers the event to every member without blocking. Members whose
// send buffer is full are returned as slow consumers for eviction.
func (r *room) fanOut(ev *Event) (delivered int, slow []*Conn) {
	for c := range r.conns {
		if c.TrySend(ev) {
			delivered++
		} else {
			slow = append(slow, c)
		}
	}
	return delivered, slow
}
