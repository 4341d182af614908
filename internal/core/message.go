package core

import "time"

// Message is the domain model for a sequenced chat message. It is
// immutable once a sequence number has been assigned.
type Message struct {
	ID        int64
	Room      string
	From      string
	Body      string
	Seq       int64
	CreatedAt time.Time
}
