package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested room or message does not exist.
var ErrNotFound = errors.New("not found")

// RoomVisibility defines who may join a room.
type RoomVisibility string

const (
	VisibilityPublic  RoomVisibility = "public"
	VisibilityPrivate RoomVisibility = "private"
)

// Room is the directory record for a broadcast group. Room identity and
// metadata survive emptiness; only live membership is transient.
type Room struct {
	ID         string
	Name       string
	Visibility RoomVisibility
	CreatedAt  time.Time
}

// Message is a persisted chat message. Seq is the per-room delivery
// sequence number; it is assigned at append time and never changes.
type Message struct {
	ID        int64
	RoomID    string
	SenderID  string
	Body      string
	Seq       int64
	CreatedAt time.Time
}

// MessageStore appends and reads the per-room message log.
type MessageStore interface {
	// Append persists a message and assigns it the next sequence number for
	// the room. The assignment is atomic per room: no two concurrent appends
	// to the same room may observe the same sequence number, and the
	// resulting series is gap-free.
	Append(ctx context.Context, roomID, senderID, body string) (*Message, error)

	// ReadRange returns up to limit messages from roomID with Seq >= fromSeq,
	// ordered by ascending sequence number. fromSeq <= 0 means "the newest
	// limit messages", still returned in ascending order.
	ReadRange(ctx context.Context, roomID string, fromSeq int64, limit int) ([]*Message, error)
}

// RoomDirectory supplies room metadata and membership authorization. The
// realtime core never enforces private-room access itself; it asks here.
type RoomDirectory interface {
	// EnsureRoom returns the room record, creating a public room with the
	// id as display name if none exists (implicit creation on first join).
	EnsureRoom(ctx context.Context, roomID string) (*Room, error)

	// CreateRoom creates a room with explicit metadata.
	CreateRoom(ctx context.Context, roomID, name string, visibility RoomVisibility) (*Room, error)

	// GetRoom retrieves a room by id. Returns ErrNotFound if absent.
	GetRoom(ctx context.Context, roomID string) (*Room, error)

	// ListRooms lists all rooms.
	ListRooms(ctx context.Context) ([]*Room, error)

	// Authorize reports whether userID may join roomID. Public rooms admit
	// everyone; private rooms require a prior grant.
	Authorize(ctx context.Context, roomID, userID string) (bool, error)

	// GrantAccess allows userID into a private room.
	GrantAccess(ctx context.Context, roomID, userID string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	MessageStore
	RoomDirectory

	// Close closes the underlying database connection.
	Close() error
}
