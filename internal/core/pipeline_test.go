package core

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
)

func TestSubmitEmptyBodySkipsPersistence(t *testing.T) {
	e := newTestEngine(t)
	alice := e.connect(t, "a", "alice", 8)
	e.hub.Join("general", alice)

	_, err := e.pipeline.Submit(context.Background(), "general", alice, "")
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
	if e.store.appends != 0 {
		t.Fatalf("validation failure must not touch the store, saw %d appends", e.store.appends)
	}
}

func TestSubmitOversizedBodyRejected(t *testing.T) {
	e := newTestEngine(t)
	alice := e.connect(t, "a", "alice", 8)
	e.hub.Join("general", alice)

	body := strings.Repeat("x", MaxMessageBytes+1)
	if _, err := e.pipeline.Submit(context.Background(), "general", alice, body); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestSubmitWithoutJoinReturnsNotAMember(t *testing.T) {
	e := newTestEngine(t)
	alice := e.connect(t, "a", "alice", 8)
	bob := e.connect(t, "b", "bob", 8)
	e.hub.Join("general", bob)
	drain(bob)

	_, err := e.pipeline.Submit(context.Background(), "general", alice, "hi")
	if !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}
	if e.store.appends != 0 {
		t.Fatal("membership failure must not persist anything")
	}
	select {
	case ev := <-bob.events:
		t.Fatalf("membership failure must not broadcast, bob got %+v", ev)
	default:
	}
}

func TestSubmitPersistenceFailureIsSurfacedAndNotBroadcast(t *testing.T) {
	e := newTestEngine(t)
	alice := e.connect(t, "a", "alice", 8)
	bob := e.connect(t, "b", "bob", 8)
	e.hub.Join("general", alice)
	e.hub.Join("general", bob)
	drain(bob)

	e.store.failWith = errStoreDown

	_, err := e.pipeline.Submit(context.Background(), "general", alice, "hi")
	var coreErr *CoreError
	if !errors.As(err, &coreErr) || coreErr.Code != ErrCodePersistence {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("persistence error should wrap the store failure, got %v", err)
	}
	select {
	case ev := <-bob.events:
		t.Fatalf("failed persist must not broadcast, bob got %+v", ev)
	default:
	}
}

func TestSubmitFiftyConcurrentYieldGapFreeSequence(t *testing.T) {
	e := newTestEngine(t)

	const senders = 50
	conns := make([]*Conn, 0, senders)
	for i := range senders {
		c := e.connect(t, "c"+strconv.Itoa(i), "user"+strconv.Itoa(i), senders+8)
		e.hub.Join("general", c)
		conns = append(conns, c)
	}
	receiver := e.connect(t, "recv", "receiver", senders*2)
	e.hub.Join("general", receiver)
	for _, c := range conns {
		drain(c)
	}
	drain(receiver)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs = make(map[int64]bool)
	)
	for i, c := range conns {
		wg.Add(1)
		go func(n int, sender *Conn) {
			defer wg.Done()
			msg, err := e.pipeline.Submit(context.Background(), "general", sender, "msg "+strconv.Itoa(n))
			if err != nil {
				t.Errorf("submit %d: %v", n, err)
				return
			}
			mu.Lock()
			if seqs[msg.Seq] {
				t.Errorf("duplicate sequence number %d", msg.Seq)
			}
			seqs[msg.Seq] = true
			mu.Unlock()
		}(i, c)
	}
	wg.Wait()

	if e.store.overlap {
		t.Fatal("appends to the same room overlapped; per-room serialization is broken")
	}
	for want := int64(1); want <= senders; want++ {
		if !seqs[want] {
			t.Fatalf("sequence gap: %d never assigned", want)
		}
	}
}

func TestConcurrentSubmitsObservedInSequenceOrder(t *testing.T) {
	e := newTestEngine(t)

	const (
		senders   = 4
		perSender = 50
		total     = senders * perSender
	)
	conns := make([]*Conn, 0, senders)
	for i := range senders {
		c := e.connect(t, "s"+strconv.Itoa(i), "user"+strconv.Itoa(i), total+16)
		e.hub.Join("general", c)
		conns = append(conns, c)
	}
	receiver := e.connect(t, "recv", "receiver", total+16)
	e.hub.Join("general", receiver)
	drain(receiver)

	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func(n int, sender *Conn) {
			defer wg.Done()
			for j := range perSender {
				if _, err := e.pipeline.Submit(context.Background(), "general", sender, "m"+strconv.Itoa(n)+"-"+strconv.Itoa(j)); err != nil {
					t.Errorf("submit %d/%d: %v", n, j, err)
				}
			}
		}(i, c)
	}
	wg.Wait()

	var seen int
	last := int64(0)
	for done := false; !done; {
		select {
		case ev := <-receiver.events:
			if ev.Kind != EventMessage {
				continue
			}
			seen++
			if ev.Message.Seq <= last {
				t.Fatalf("observed seq %d after seq %d (out of order)", ev.Message.Seq, last)
			}
			last = ev.Message.Seq
		default:
			done = true
		}
	}
	if seen != total {
		t.Fatalf("receiver observed %d messages, want %d", seen, total)
	}
}

func TestJoinBackfillDeliversEachMessageExactlyOnce(t *testing.T) {
	e := newTestEngine(t)
	sender := e.connect(t, "s", "sender", 256)
	e.hub.Join("general", sender)

	const seeded, racing = 5, 50
	for i := range seeded {
		if _, err := e.pipeline.Submit(context.Background(), "general", sender, "seed "+strconv.Itoa(i)); err != nil {
			t.Fatalf("seed submit %d: %v", i, err)
		}
	}

	joiner := e.connect(t, "j", "joiner", 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range racing {
			if _, err := e.pipeline.Submit(context.Background(), "general", sender, "racing "+strconv.Itoa(i)); err != nil {
				t.Errorf("racing submit %d: %v", i, err)
			}
		}
	}()

	added, err := e.pipeline.JoinWithHistory(context.Background(), "general", joiner, 100)
	if err != nil || !added {
		t.Fatalf("JoinWithHistory: added=%v err=%v", added, err)
	}
	<-done

	// The joiner must see a history frame first, then every remaining
	// message live: each persisted seq exactly once across the two.
	observed := make(map[int64]int)
	sawHistory := false
	for idle := false; !idle; {
		select {
		case ev := <-joiner.events:
			switch ev.Kind {
			case EventHistory:
				sawHistory = true
				for _, m := range ev.Messages {
					observed[m.Seq]++
				}
			case EventMessage:
				if !sawHistory {
					t.Fatal("live message delivered before the history frame")
				}
				observed[ev.Message.Seq]++
			}
		default:
			idle = true
		}
	}
	if !sawHistory {
		t.Fatal("no history frame delivered on join")
	}
	for want := int64(1); want <= seeded+racing; want++ {
		switch observed[want] {
		case 1:
		case 0:
			t.Fatalf("seq %d never reached the joiner", want)
		default:
			t.Fatalf("seq %d delivered %d times", want, observed[want])
		}
	}
}

func TestRejoinGetsNoSecondBackfill(t *testing.T) {
	e := newTestEngine(t)
	alice := e.connect(t, "a", "alice", 16)
	if _, err := e.pipeline.JoinWithHistory(context.Background(), "general", alice, 50); err != nil {
		t.Fatalf("first join: %v", err)
	}
	drain(alice)

	added, err := e.pipeline.JoinWithHistory(context.Background(), "general", alice, 50)
	if err != nil {
		t.Fatalf("re-join: %v", err)
	}
	if added {
		t.Fatal("re-join reported as a fresh join")
	}
	select {
	case ev := <-alice.events:
		t.Fatalf("re-join must deliver nothing, got %+v", ev)
	default:
	}
}

func TestSubmitCrossRoomIndependence(t *testing.T) {
	e := newTestEngine(t)

	const perRoom = 10
	rooms := []string{"red", "green", "blue"}
	var wg sync.WaitGroup
	for _, roomID := range rooms {
		for i := range perRoom {
			c := e.connect(t, roomID+"-"+strconv.Itoa(i), "u-"+roomID+strconv.Itoa(i), perRoom*3)
			e.hub.Join(roomID, c)
			wg.Add(1)
			go func(r string, sender *Conn) {
				defer wg.Done()
				if _, err := e.pipeline.Submit(context.Background(), r, sender, "x"); err != nil {
					t.Errorf("submit to %s: %v", r, err)
				}
			}(roomID, c)
		}
	}
	wg.Wait()

	for _, roomID := range rooms {
		msgs, err := e.store.ReadRange(context.Background(), roomID, 1, perRoom*2)
		if err != nil {
			t.Fatalf("read %s: %v", roomID, err)
		}
		if len(msgs) != perRoom {
			t.Fatalf("room %s: expected %d messages, got %d", roomID, perRoom, len(msgs))
		}
		for i, m := range msgs {
			if m.Seq != int64(i+1) {
				t.Fatalf("room %s: expected seq %d at index %d, got %d", roomID, i+1, i, m.Seq)
			}
		}
	}
}
