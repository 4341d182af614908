package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessage delivers a sequenced chat message to room members.
	EventMessage EventKind = iota
	// EventPresence notifies room members about an online/offline transition.
	EventPresence
	// EventMemberJoined notifies room members that a connection joined.
	EventMemberJoined
	// EventMemberLeft notifies room members that a connection left.
	EventMemberLeft
	// EventHistory delivers message backfill to a client upon joining a room.
	EventHistory
	// EventPong answers a client ping.
	EventPong
	// EventError notifies the submitting client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Room     string
	User     string
	Online   bool
	LastSeen time.Time
	Message  Message
	Messages []Message // for EventHistory
	Error    *CoreError
}
