package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Dhanush032/realtime-chat-server/internal/store"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type engine struct {
	hub      *Hub
	presence *Tracker
	registry *Registry
	pipeline *Pipeline
	store    *memStore
}

func newTestEngine(t *testing.T) *engine {
	t.Helper()

	logger := testLogger()
	hub := NewHub(logger)
	presence := NewTracker(hub, logger)
	registry := NewRegistry(hub, presence, logger)
	st := newMemStore()
	pipeline := NewPipeline(hub, st, logger)

	return &engine{hub: hub, presence: presence, registry: registry, pipeline: pipeline, store: st}
}

func (e *engine) connect(t *testing.T, id, user string, buffer int) *Conn {
	t.Helper()

	c := NewConn(id, user, user, buffer)
	if err := e.registry.Register(c); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return c
}

func mustEvent(t *testing.T, c *Conn, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.events:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

func drain(c *Conn) {
	for {
		select {
		case <-c.events:
		default:
			return
		}
	}
}

// memStore is an in-memory MessageStore that mirrors the real store's
// atomicity contract and records whether Append was ever invoked.
type memStore struct {
	mu       sync.Mutex
	byRoom   map[string][]*store.Message
	nextID   int64
	appends  int
	failWith error

	// inAppend trips if two appends for the same room overlap, which the
	// pipeline's per-room lock must prevent.
	inAppend map[string]bool
	overlap  bool
}

func newMemStore() *memStore {
	return &memStore{
		byRoom:   make(map[string][]*store.Message),
		inAppend: make(map[string]bool),
	}
}

func (m *memStore) Append(ctx context.Context, roomID, senderID, body string) (*store.Message, error) {
	m.mu.Lock()
	if m.inAppend[roomID] {
		m.overlap = true
	}
	m.inAppend[roomID] = true
	m.appends++
	if m.failWith != nil {
		m.inAppend[roomID] = false
		err := m.failWith
		m.mu.Unlock()
		return nil, err
	}
	m.nextID++
	msg := &store.Message{
		ID:        m.nextID,
		RoomID:    roomID,
		SenderID:  senderID,
		Body:      body,
		Seq:       int64(len(m.byRoom[roomID]) + 1),
		CreatedAt: time.Now(),
	}
	m.byRoom[roomID] = append(m.byRoom[roomID], msg)
	m.inAppend[roomID] = false
	m.mu.Unlock()
	return msg, nil
}

func (m *memStore) ReadRange(ctx context.Context, roomID string, fromSeq int64, limit int) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.byRoom[roomID]
	var out []*store.Message
	for _, msg := range msgs {
		if fromSeq > 0 && msg.Seq < fromSeq {
			continue
		}
		out = append(out, msg)
	}
	if fromSeq <= 0 && len(out) > limit {
		out = out[len(out)-limit:]
	} else if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var errStoreDown = errors.New("store unavailable")
