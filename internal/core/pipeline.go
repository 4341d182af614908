package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Dhanush032/realtime-chat-server/internal/store"
)

// MaxMessageBytes is the upper bound on a chat message body.
const MaxMessageBytes = 4096

// Pipeline takes an inbound message through validate, authorize, persist,
// and broadcast. Each step has a defined failure return and no step after
// a failure runs, so a rejected message is never delivered and a
// non-persisted message is never silently dropped.
type Pipeline struct {
	hub      *Hub
	messages store.MessageStore
	log      *zerolog.Logger

	// roomLocks serializes sequence assignment and fan-out per room. One
	// mutex per room id, never a global one: submissions to unrelated
	// rooms proceed fully in parallel. Fan-out stays inside the lock so
	// members observe messages in assigned-sequence order; TrySend never
	// blocks, so holding the lock across it is cheap.
	mu        sync.Mutex
	roomLocks map[string]*sync.Mutex
}

// NewPipeline creates a message pipeline.
func NewPipeline(hub *Hub, messages store.MessageStore, logger *zerolog.Logger) *Pipeline {
	return &Pipeline{
		hub:       hub,
		messages:  messages,
		log:       logger,
		roomLocks: make(map[string]*sync.Mutex),
	}
}

// Submit validates, persists, and broadcasts one message from sender into
// roomID. On success the returned message carries the assigned per-room
// sequence number; on failure nothing was broadcast.
func (p *Pipeline) Submit(ctx context.Context, roomID string, sender *Conn, body string) (Message, error) {
	if body == "" || len(body) > MaxMessageBytes {
		return Message{}, ErrInvalidMessage
	}

	if !p.hub.IsMember(roomID, sender) {
		return Message{}, ErrNotAMember
	}

	lock := p.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := p.messages.Append(ctx, roomID, sender.UserID, body)
	if err != nil {
		p.log.Error().Err(err).Str("room", roomID).Str("user", sender.UserID).Msg("message persist failed")
		return Message{}, PersistenceError(err)
	}

	msg := Message{
		ID:        stored.ID,
		Room:      stored.RoomID,
		From:      sender.Username,
		Body:      stored.Body,
		Seq:       stored.Seq,
		CreatedAt: stored.CreatedAt,
	}

	delivered := p.hub.Broadcast(roomID, &Event{Kind: EventMessage, Room: roomID, Message: msg})
	p.log.Debug().Str("room", roomID).Int64("seq", msg.Seq).Int("delivered", delivered).Msg("message broadcast")
	return msg, nil
}

// JoinWithHistory subscribes the connection to the room and backfills
// recent history in one step, serialized against Submit on the room's
// lock: a message persisted before the join lands in the snapshot, one
// persisted after it arrives live, and none arrives twice. The history
// frame is enqueued inside the lock so it precedes any live message.
// Reports whether the connection actually joined; a re-join gets no
// backfill.
func (p *Pipeline) JoinWithHistory(ctx context.Context, roomID string, c *Conn, limit int) (bool, error) {
	lock := p.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	if !p.hub.Join(roomID, c) {
		return false, nil
	}

	backfill, err := p.messages.ReadRange(ctx, roomID, 0, limit)
	if err != nil {
		p.log.Warn().Err(err).Str("room", roomID).Str("conn_id", c.ID).Msg("history backfill failed")
		return true, PersistenceError(err)
	}
	history := make([]Message, 0, len(backfill))
	for _, m := range backfill {
		history = append(history, Message{
			ID:        m.ID,
			Room:      m.RoomID,
			From:      m.SenderID,
			Body:      m.Body,
			Seq:       m.Seq,
			CreatedAt: m.CreatedAt,
		})
	}
	c.TrySend(&Event{Kind: EventHistory, Room: roomID, Messages: history})
	return true, nil
}

func (p *Pipeline) roomLock(roomID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		p.roomLocks[roomID] = lock
	}
	return lock
}
