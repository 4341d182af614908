package core

import (
	"context"
	"sync"
	"testing"
)

func TestRegistryDuplicateConnection(t *testing.T) {
	e := newTestEngine(t)
	e.connect(t, "a", "alice", 8)

	dup := NewConn("a", "mallory", "mallory", 8)
	if err := e.registry.Register(dup); err != ErrDuplicateConnection {
		t.Fatalf("expected ErrDuplicateConnection, got %v", err)
	}
}

func TestRegistryLookup(t *testing.T) {
	e := newTestEngine(t)
	e.connect(t, "a", "alice", 8)

	user, err := e.registry.Lookup("a")
	if err != nil || user != "alice" {
		t.Fatalf("lookup: got (%q, %v)", user, err)
	}
	if _, err := e.registry.Lookup("ghost"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryDeregisterIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	alice := e.connect(t, "a", "alice", 8)
	bob := e.connect(t, "b", "bob", 8)

	e.hub.Join("general", alice)
	e.hub.Join("general", bob)
	drain(bob)

	// Disconnect notifications may race with explicit cleanup: both paths
	// call Deregister, only one runs the teardown.
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.registry.Deregister("a")
		}()
	}
	wg.Wait()
	e.registry.Deregister("a") // and once more, after the fact
	e.registry.Deregister("never-existed")

	leftEv := mustEvent(t, bob, EventMemberLeft)
	if leftEv.User != "alice" {
		t.Fatalf("unexpected member_left: %+v", leftEv)
	}
	select {
	case ev := <-bob.events:
		if ev.Kind == EventMemberLeft {
			t.Fatalf("member_left broadcast twice: %+v", ev)
		}
	default:
	}
}

func TestRegistryDeregisterCleansMembershipBeforeReturning(t *testing.T) {
	e := newTestEngine(t)
	alice := e.connect(t, "a", "alice", 8)
	bob := e.connect(t, "b", "bob", 8)

	e.hub.Join("general", alice)
	e.hub.Join("random", alice)
	e.hub.Join("general", bob)

	e.registry.Deregister("a")

	// Cleanup is synchronous-before-completion: by the time Deregister has
	// returned, no room still lists the connection and presence is offline.
	for _, roomID := range []string{"general", "random"} {
		for _, id := range e.hub.Members(roomID) {
			if id == "a" {
				t.Fatalf("stale membership in %s after deregister", roomID)
			}
		}
	}
	if online, _ := e.presence.Status("alice"); online {
		t.Fatal("alice should be offline after her only connection closed")
	}

	presEv := mustEvent(t, bob, EventPresence)
	if presEv.User != "alice" || presEv.Online {
		t.Fatalf("expected offline presence notice, got %+v", presEv)
	}
}

func TestJoinRefusedAfterDeregister(t *testing.T) {
	e := newTestEngine(t)
	alice := e.connect(t, "a", "alice", 8)
	bob := e.connect(t, "b", "bob", 8)
	e.hub.Join("general", alice)
	e.hub.Join("general", bob)

	e.registry.Deregister("b")

	// The read loop can still be draining frames after an eviction has run
	// the full teardown; a join processed then must not come back as a
	// membership no later cleanup would remove.
	if e.hub.Join("general", bob) {
		t.Fatal("join accepted for a deregistered connection")
	}
	if got := e.hub.Members("general"); len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected alice alone in general, got %v", got)
	}

	e.registry.Deregister("b") // later no-op deregister changes nothing
	if got := e.hub.Members("general"); len(got) != 1 || got[0] != "a" {
		t.Fatalf("membership disturbed by no-op deregister: %v", got)
	}
}

func TestDisconnectScenario(t *testing.T) {
	e := newTestEngine(t)

	a := e.connect(t, "A", "alice", 16)
	e.hub.Join("general", a)
	if got := e.hub.Members("general"); len(got) != 1 || got[0] != "A" {
		t.Fatalf("expected members {A}, got %v", got)
	}

	b := e.connect(t, "B", "bob", 16)
	e.hub.Join("general", b)

	msg, err := e.pipeline.Submit(context.Background(), "general", a, "hi")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if msg.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", msg.Seq)
	}
	for _, c := range []*Conn{a, b} {
		ev := mustEvent(t, c, EventMessage)
		if ev.Message.Seq != 1 || ev.Message.Body != "hi" {
			t.Fatalf("unexpected delivery for %s: %+v", c.ID, ev.Message)
		}
	}

	e.registry.Deregister("B")

	presEv := mustEvent(t, a, EventPresence)
	if presEv.User != "bob" || presEv.Online {
		t.Fatalf("expected bob offline notice, got %+v", presEv)
	}
	if got := e.hub.Members("general"); len(got) != 1 || got[0] != "A" {
		t.Fatalf("expected A alone in general, got %v", got)
	}
}
