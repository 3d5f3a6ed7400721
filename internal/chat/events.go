package chat

import (
	"encoding/json"
	"time"
)

// WebSocket close codes. Stable contract: clients distinguish retryable
// failures (missing or expired token) from non-retryable ones by code.
const (
	CloseNoToken      = 4001
	CloseInvalidToken = 4002
	CloseRoomNotFound = 4003
	CloseAccessDenied = 4004
)

// Inbound event types.
const (
	EventSendMessage = "send_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
)

// Outbound event types.
const (
	EventUserJoined = "user_joined"
	EventNewMessage = "new_message"
	EventUserTyping = "user_typing"
	EventUserLeft   = "user_left"
	EventError      = "error"
)

// inboundEvent is one client frame. Unrecognized types are ignored so the
// loop stays robust to forward-compatible client payloads.
type inboundEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// presenceEvent announces a user joining or leaving a room.
type presenceEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// typingEvent relays a transient typing signal. Never persisted.
type typingEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Typing   bool   `json:"typing"`
}

// messageEvent carries a persisted message, including the store-assigned id
// so receivers can deduplicate against later history fetches.
type messageEvent struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
	IsRead     bool      `json:"is_read"`
}

// errorEvent is a failure acknowledgment delivered only to the sender.
type errorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func marshalEvent(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Event structs contain nothing that can fail to marshal.
		panic(err)
	}
	return data
}
