// Package storetest provides an in-memory MessageStore for tests.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/models"
)

// ErrInsertFailed is returned by InsertMessage when failure is enabled.
var ErrInsertFailed = errors.New("storetest: insert failed")

// Fake is an in-memory MessageStore. Safe for concurrent use.
type Fake struct {
	mu          sync.Mutex
	rooms       map[string]*models.Room
	messages    []*models.Message
	failInserts bool
}

// NewFake creates an empty fake store.
func NewFake() *Fake {
	return &Fake{rooms: make(map[string]*models.Room)}
}

// SetFailInserts toggles InsertMessage failure, for store-error paths.
func (f *Fake) SetFailInserts(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failInserts = fail
}

// SeedRoom installs a room for the given pair of users and returns it.
func (f *Fake) SeedRoom(user1ID, user1Name, user2ID, user2Name string) *models.Room {
	room, _, _ := f.CreateRoom(context.Background(), user1ID, user1Name, user2ID, user2Name)
	return room
}

// MessageCount reports how many messages have been persisted.
func (f *Fake) MessageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// Messages returns a copy of all persisted messages.
func (f *Fake) Messages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Message, len(f.messages))
	for i, m := range f.messages {
		out[i] = *m
	}
	return out
}

func (f *Fake) Close() {}

func (f *Fake) Ping(ctx context.Context) error { return nil }

func (f *Fake) FindRoom(ctx context.Context, roomID string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, nil
	}
	copied := *room
	return &copied, nil
}

func (f *Fake) CreateRoom(ctx context.Context, userID, userName, targetID, targetName string) (*models.Room, bool, error) {
	roomID := models.RoomID(userID, targetID)

	f.mu.Lock()
	defer f.mu.Unlock()

	if room, ok := f.rooms[roomID]; ok {
		copied := *room
		return &copied, false, nil
	}

	user1ID, user1Name := userID, userName
	user2ID, user2Name := targetID, targetName
	if user2ID < user1ID {
		user1ID, user2ID = user2ID, user1ID
		user1Name, user2Name = user2Name, user1Name
	}

	room := &models.Room{
		RoomID:    roomID,
		User1ID:   user1ID,
		User1Name: user1Name,
		User2ID:   user2ID,
		User2Name: user2Name,
		CreatedAt: time.Now().UTC(),
	}
	f.rooms[roomID] = room

	copied := *room
	return &copied, true, nil
}

func (f *Fake) ListRoomsForUser(ctx context.Context, userID string) ([]models.RoomSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var summaries []models.RoomSummary
	for _, room := range f.rooms {
		if !room.HasParticipant(userID) {
			continue
		}
		otherID, otherName := room.OtherParticipant(userID)

		var unread int64
		for _, m := range f.messages {
			if m.RoomID == room.RoomID && m.SenderID != userID && !m.IsRead {
				unread++
			}
		}

		summaries = append(summaries, models.RoomSummary{
			RoomID:        room.RoomID,
			OtherUserID:   otherID,
			OtherUserName: otherName,
			LastMessage:   room.LastMessage,
			LastMessageAt: room.LastMessageAt,
			UnreadCount:   unread,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		ti, tj := summaries[i].LastMessageAt, summaries[j].LastMessageAt
		if ti == nil {
			return false
		}
		if tj == nil {
			return true
		}
		return ti.After(*tj)
	})

	return summaries, nil
}

func (f *Fake) TouchRoomLastMessage(ctx context.Context, roomID, text string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return nil
	}
	room.LastMessage = &text
	room.LastMessageAt = &at
	return nil
}

func (f *Fake) InsertMessage(ctx context.Context, msg *models.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failInserts {
		return "", ErrInsertFailed
	}

	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	copied := *msg
	f.messages = append(f.messages, &copied)
	return msg.ID, nil
}

func (f *Fake) ListMessages(ctx context.Context, roomID string, skip, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []models.Message
	for _, m := range f.messages {
		if m.RoomID == roomID {
			all = append(all, *m)
		}
	}

	// Newest-first pagination, like the SQL stores.
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if skip >= len(all) {
		return nil, nil
	}
	all = all[skip:]
	if limit < len(all) {
		all = all[:limit]
	}

	// Reverse into replay order.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

func (f *Fake) MarkRead(ctx context.Context, roomID, excludeSender string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var updated int64
	for _, m := range f.messages {
		if m.RoomID == roomID && m.SenderID != excludeSender && !m.IsRead {
			m.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (f *Fake) CountRooms(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rooms)), nil
}

func (f *Fake) CountMessages(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.messages)), nil
}
