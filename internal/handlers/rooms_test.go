package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/api/middleware"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/auth"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/chat"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/store/storetest"
)

type apiFixture struct {
	fake     *storetest.Fake
	verifier *auth.Verifier
	ts       *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	fake := storetest.NewFake()
	verifier := auth.NewVerifier("test-secret")
	h := NewHandler(fake, nil, chat.NewRegistry())
	authMW := middleware.NewAuthMiddleware(verifier)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(authMW.RequireAuth)
		r.Post("/chat/room/create", h.CreateRoom)
		r.Get("/chat/rooms", h.ListRooms)
		r.Get("/chat/room/{roomID}/messages", h.GetMessages)
		r.Post("/chat/room/{roomID}/message", h.SendMessage)
		r.Get("/chat/room/{roomID}/recent", h.RecentMessages)
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	return &apiFixture{fake: fake, verifier: verifier, ts: ts}
}

func (f *apiFixture) token(t *testing.T, userID, userName string) string {
	t.Helper()
	token, err := f.verifier.Issue(userID, userName, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

// do issues a request with an optional bearer token and JSON body, decoding
// the response into out when out is non-nil.
func (f *apiFixture) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestCreateRoomCreatedThenExisting(t *testing.T) {
	f := newAPIFixture(t)

	var resp CreateRoomResponse
	status := f.do(t, http.MethodPost, "/chat/room/create", f.token(t, "alice", "Alice"),
		CreateRoomRequest{TargetUserID: "bob", TargetUserName: "Bob"}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if resp.RoomID != "alice_bob" || resp.Status != "created" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// The counterpart creating the same pair lands on the existing room.
	status = f.do(t, http.MethodPost, "/chat/room/create", f.token(t, "bob", "Bob"),
		CreateRoomRequest{TargetUserID: "alice", TargetUserName: "Alice"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.RoomID != "alice_bob" || resp.Status != "existing" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreateRoomValidation(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "alice", "Alice")

	if status := f.do(t, http.MethodPost, "/chat/room/create", "",
		CreateRoomRequest{TargetUserID: "bob", TargetUserName: "Bob"}, nil); status != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", status)
	}

	if status := f.do(t, http.MethodPost, "/chat/room/create", token,
		CreateRoomRequest{}, nil); status != http.StatusBadRequest {
		t.Fatalf("missing target: expected 400, got %d", status)
	}

	if status := f.do(t, http.MethodPost, "/chat/room/create", token,
		CreateRoomRequest{TargetUserID: "alice", TargetUserName: "Alice"}, nil); status != http.StatusBadRequest {
		t.Fatalf("self chat: expected 400, got %d", status)
	}
}

func TestListRooms(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "alice", "Alice")

	// No rooms yet: the list is empty, never null.
	var resp struct {
		Rooms []struct {
			RoomID        string `json:"room_id"`
			OtherUserID   string `json:"other_user_id"`
			OtherUserName string `json:"other_user_name"`
			UnreadCount   int64  `json:"unread_count"`
		} `json:"rooms"`
	}
	if status := f.do(t, http.MethodGet, "/chat/rooms", token, nil, &resp); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.Rooms == nil || len(resp.Rooms) != 0 {
		t.Fatalf("expected empty list, got %v", resp.Rooms)
	}

	room := f.fake.SeedRoom("alice", "Alice", "bob", "Bob")
	seedMessage(t, f.fake, room.RoomID, "bob", "Bob", "hey")
	seedMessage(t, f.fake, room.RoomID, "bob", "Bob", "you there?")

	if status := f.do(t, http.MethodGet, "/chat/rooms", token, nil, &resp); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(resp.Rooms) != 1 {
		t.Fatalf("expected 1 room, got %d", len(resp.Rooms))
	}
	got := resp.Rooms[0]
	if got.RoomID != room.RoomID || got.OtherUserID != "bob" || got.OtherUserName != "Bob" {
		t.Fatalf("unexpected room summary: %+v", got)
	}
	if got.UnreadCount != 2 {
		t.Fatalf("expected 2 unread, got %d", got.UnreadCount)
	}
}
