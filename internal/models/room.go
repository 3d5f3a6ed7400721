package models

import (
	"fmt"
	"time"
)

// Room represents a two-party chat room.
// User1 always holds the lexicographically smaller user id.
type Room struct {
	RoomID        string     `json:"room_id"`
	User1ID       string     `json:"user1_id"`
	User1Name     string     `json:"user1_name"`
	User2ID       string     `json:"user2_id"`
	User2Name     string     `json:"user2_name"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessage   *string    `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// RoomID derives the canonical room identifier for an unordered pair of
// user ids. Both participants compute the same id regardless of who
// initiates, which makes room creation a find-or-create.
func RoomID(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%s_%s", userA, userB)
}

// HasParticipant reports whether the given user belongs to the room.
func (r *Room) HasParticipant(userID string) bool {
	return userID == r.User1ID || userID == r.User2ID
}

// OtherParticipant returns the id and name of the participant that is not
// the given user. Callers are expected to have checked membership first.
func (r *Room) OtherParticipant(userID string) (id, name string) {
	if userID == r.User1ID {
		return r.User2ID, r.User2Name
	}
	return r.User1ID, r.User1Name
}

// RoomSummary is the room-list view for one user: the other participant,
// the denormalized last message, and how many messages they have not read.
type RoomSummary struct {
	RoomID        string     `json:"room_id"`
	OtherUserID   string     `json:"other_user_id"`
	OtherUserName string     `json:"other_user_name"`
	LastMessage   *string    `json:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int64      `json:"unread_count"`
}
