package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func insertAt(t *testing.T, s *SQLiteStore, roomID, sender, body string, at time.Time) string {
	t.Helper()
	id, err := s.InsertMessage(context.Background(), &models.Message{
		RoomID:     roomID,
		SenderID:   sender,
		SenderName: sender,
		Body:       body,
		CreatedAt:  at,
	})
	if err != nil {
		t.Fatalf("insert %q: %v", body, err)
	}
	return id
}

func TestCreateRoomFindOrCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room, created, err := s.CreateRoom(ctx, "bob", "Bob", "alice", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("first create must report created")
	}
	if room.RoomID != "alice_bob" {
		t.Fatalf("room id not canonical: %q", room.RoomID)
	}
	// Participants are stored in canonical order regardless of who created.
	if room.User1ID != "alice" || room.User2ID != "bob" {
		t.Fatalf("participants not canonical: %+v", room)
	}

	// The reverse pair resolves to the same room.
	again, created, err := s.CreateRoom(ctx, "alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("second create must report existing")
	}
	if again.RoomID != room.RoomID {
		t.Fatalf("pair mapped to two rooms: %q vs %q", again.RoomID, room.RoomID)
	}

	if n, _ := s.CountRooms(ctx); n != 1 {
		t.Fatalf("expected 1 room, got %d", n)
	}
}

func TestCreateRoomConcurrent(t *testing.T) {
	s := newTestStore(t)

	const workers = 8
	results := make([]bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, created, err := s.CreateRoom(context.Background(), "bob", "Bob", "alice", "Alice")
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			results[i] = created
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, created := range results {
		if created {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one create to win, got %d", wins)
	}
	if n, _ := s.CountRooms(context.Background()); n != 1 {
		t.Fatalf("racing creates produced %d rooms", n)
	}
}

func TestFindRoomMissing(t *testing.T) {
	s := newTestStore(t)

	room, err := s.FindRoom(context.Background(), "nobody_noone")
	if err != nil {
		t.Fatal(err)
	}
	if room != nil {
		t.Fatalf("expected nil for missing room, got %+v", room)
	}
}

func TestListMessagesReplayOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room, _, err := s.CreateRoom(ctx, "alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, body := range []string{"m1", "m2", "m3", "m4", "m5"} {
		insertAt(t, s, room.RoomID, "alice", body, base.Add(time.Duration(i)*time.Second))
	}

	// First page holds the newest messages, delivered oldest first.
	page, err := s.ListMessages(ctx, room.RoomID, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	assertBodies(t, page, "m3", "m4", "m5")

	// The next page continues backwards through history.
	page, err = s.ListMessages(ctx, room.RoomID, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	assertBodies(t, page, "m1", "m2")

	page, err = s.ListMessages(ctx, room.RoomID, 10, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 0 {
		t.Fatalf("expected empty page past history, got %d", len(page))
	}
}

func assertBodies(t *testing.T, msgs []models.Message, want ...string) {
	t.Helper()
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, body := range want {
		if msgs[i].Body != body {
			t.Fatalf("position %d: want %q, got %q", i, body, msgs[i].Body)
		}
	}
}

func TestInsertMessageAssignsID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room, _, err := s.CreateRoom(ctx, "alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatal(err)
	}

	msg := &models.Message{RoomID: room.RoomID, SenderID: "alice", SenderName: "Alice", Body: "hello"}
	id, err := s.InsertMessage(ctx, msg)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" || msg.ID != id {
		t.Fatalf("id not assigned: %q vs %q", id, msg.ID)
	}
	if msg.CreatedAt.IsZero() {
		t.Fatal("created_at not assigned")
	}
	if n, _ := s.CountMessages(ctx); n != 1 {
		t.Fatalf("expected 1 message, got %d", n)
	}
}

func TestMarkRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	room, _, err := s.CreateRoom(ctx, "alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insertAt(t, s, room.RoomID, "bob", "b1", base)
	insertAt(t, s, room.RoomID, "bob", "b2", base.Add(time.Second))
	insertAt(t, s, room.RoomID, "alice", "a1", base.Add(2*time.Second))

	// Alice reads the room: bob's messages flip, her own does not.
	n, err := s.MarkRead(ctx, room.RoomID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 messages marked, got %d", n)
	}

	msgs, err := s.ListMessages(ctx, room.RoomID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, msg := range msgs {
		wantRead := msg.SenderID == "bob"
		if msg.IsRead != wantRead {
			t.Fatalf("message %q: is_read=%v", msg.Body, msg.IsRead)
		}
	}

	// A second pass finds nothing left to mark.
	n, err = s.MarkRead(ctx, room.RoomID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected idempotent mark-read, got %d", n)
	}
}

func TestListRoomsForUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	roomAB, _, err := s.CreateRoom(ctx, "alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatal(err)
	}
	roomAC, _, err := s.CreateRoom(ctx, "alice", "Alice", "carol", "Carol")
	if err != nil {
		t.Fatal(err)
	}
	// A room alice is not in must never show up for her.
	if _, _, err := s.CreateRoom(ctx, "bob", "Bob", "carol", "Carol"); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insertAt(t, s, roomAB.RoomID, "bob", "hey", base)
	insertAt(t, s, roomAB.RoomID, "bob", "you there?", base.Add(time.Second))
	insertAt(t, s, roomAC.RoomID, "carol", "hi alice", base.Add(2*time.Second))
	if err := s.TouchRoomLastMessage(ctx, roomAB.RoomID, "you there?", base.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := s.TouchRoomLastMessage(ctx, roomAC.RoomID, "hi alice", base.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}

	rooms, err := s.ListRoomsForUser(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms for alice, got %d", len(rooms))
	}

	// Most recent activity first.
	if rooms[0].RoomID != roomAC.RoomID || rooms[1].RoomID != roomAB.RoomID {
		t.Fatalf("wrong room order: %q, %q", rooms[0].RoomID, rooms[1].RoomID)
	}
	if rooms[0].OtherUserID != "carol" || rooms[0].OtherUserName != "Carol" {
		t.Fatalf("wrong counterpart: %+v", rooms[0])
	}
	if rooms[0].UnreadCount != 1 || rooms[1].UnreadCount != 2 {
		t.Fatalf("wrong unread counts: %d, %d", rooms[0].UnreadCount, rooms[1].UnreadCount)
	}
	if rooms[1].LastMessage == nil || *rooms[1].LastMessage != "you there?" {
		t.Fatalf("wrong last message: %+v", rooms[1].LastMessage)
	}

	// Reading the room clears its unread count.
	if _, err := s.MarkRead(ctx, roomAB.RoomID, "alice"); err != nil {
		t.Fatal(err)
	}
	rooms, err = s.ListRoomsForUser(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if rooms[1].UnreadCount != 0 {
		t.Fatalf("unread count not cleared: %d", rooms[1].UnreadCount)
	}
}
