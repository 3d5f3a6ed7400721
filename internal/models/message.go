package models

import "time"

// Message represents a persisted chat message. Immutable once stored,
// except for the read flag which flips when the recipient fetches history.
type Message struct {
	ID         string    `json:"id"` // ULID, assigned by the store
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
	IsRead     bool      `json:"is_read"`
}
