package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/auth"
)

func testSession(userID, roomID string) *Session {
	return newSession(nil, &auth.Identity{UserID: userID, UserName: "User " + userID}, roomID)
}

// received drains one payload from the session's send queue, if any.
func received(s *Session) (string, bool) {
	select {
	case payload := <-s.send:
		return string(payload), true
	default:
		return "", false
	}
}

func TestRegisterAndBroadcast(t *testing.T) {
	r := NewRegistry()
	a := testSession("a", "room-1")
	b := testSession("b", "room-1")
	other := testSession("c", "room-2")

	r.Register("room-1", a)
	r.Register("room-1", b)
	r.Register("room-2", other)

	r.Broadcast("room-1", []byte("hello"), nil)

	for _, s := range []*Session{a, b} {
		got, ok := received(s)
		if !ok || got != "hello" {
			t.Fatalf("session %s: expected hello, got %q (ok=%v)", s.userID, got, ok)
		}
	}
	if _, ok := received(other); ok {
		t.Fatal("broadcast leaked into another room")
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	r := NewRegistry()
	a := testSession("a", "room-1")
	b := testSession("b", "room-1")
	r.Register("room-1", a)
	r.Register("room-1", b)

	r.Broadcast("room-1", []byte("typing"), a)

	if _, ok := received(a); ok {
		t.Fatal("excluded sender received its own broadcast")
	}
	if got, ok := received(b); !ok || got != "typing" {
		t.Fatalf("expected typing at b, got %q (ok=%v)", got, ok)
	}
}

func TestDeregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	a := testSession("a", "room-1")
	b := testSession("b", "room-1")
	r.Register("room-1", a)
	r.Register("room-1", b)

	r.Deregister(a)
	r.Deregister(a) // double deregistration is a no-op

	if r.Contains(a) {
		t.Fatal("deregistered session still present")
	}
	if r.RoomSize("room-1") != 1 {
		t.Fatalf("expected 1 member, got %d", r.RoomSize("room-1"))
	}

	r.Deregister(b)
	if r.RoomSize("room-1") != 0 {
		t.Fatal("empty room entry not removed")
	}
}

func TestDeregisterUnknownSession(t *testing.T) {
	r := NewRegistry()
	r.Deregister(testSession("ghost", "room-1")) // must not panic
}

func TestBroadcastDropsFailedRecipient(t *testing.T) {
	r := NewRegistry()
	a := testSession("a", "room-1")
	stuck := testSession("b", "room-1")
	r.Register("room-1", a)
	r.Register("room-1", stuck)

	// Fill the stuck session's buffer; nothing drains it.
	for i := 0; i < sendBufferSize; i++ {
		if err := stuck.enqueue([]byte("fill")); err != nil {
			t.Fatalf("fill %d: %v", i, err)
		}
	}

	r.Broadcast("room-1", []byte("hello"), nil)

	// Delivery to the healthy session continued.
	if got, ok := received(a); !ok || got != "hello" {
		t.Fatalf("healthy recipient missed broadcast: %q (ok=%v)", got, ok)
	}
	// The failed recipient was dropped and closed.
	if r.Contains(stuck) {
		t.Fatal("failed recipient still registered")
	}
	if err := stuck.enqueue([]byte("x")); err != errSessionClosed {
		t.Fatalf("expected errSessionClosed, got %v", err)
	}
}

func TestConcurrentRegistryAccess(t *testing.T) {
	r := NewRegistry()
	const workers = 16

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := testSession(fmt.Sprintf("u%d", i), "room-1")
			for j := 0; j < 100; j++ {
				r.Register("room-1", s)
				r.Broadcast("room-1", []byte("m"), nil)
				for {
					if _, ok := received(s); !ok {
						break
					}
				}
				r.Deregister(s)
			}
		}(i)
	}
	wg.Wait()

	if n := r.RoomSize("room-1"); n != 0 {
		t.Fatalf("expected empty room, got %d members", n)
	}
	if n := r.Connections(); n != 0 {
		t.Fatalf("expected no live connections, got %d", n)
	}
}
