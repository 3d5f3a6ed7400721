package store

import (
	"context"
	"time"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/models"
)

// MessageStore defines the interface for durable chat persistence.
// Both PostgresStore and SQLiteStore implement this interface.
// Lookups return (nil, nil) when the record does not exist.
type MessageStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Room operations
	FindRoom(ctx context.Context, roomID string) (*models.Room, error)
	// CreateRoom is a find-or-create: two users racing to open the same
	// pair's room both get the one row. created reports whether this call
	// inserted it.
	CreateRoom(ctx context.Context, userID, userName, targetID, targetName string) (room *models.Room, created bool, err error)
	ListRoomsForUser(ctx context.Context, userID string) ([]models.RoomSummary, error)
	TouchRoomLastMessage(ctx context.Context, roomID, text string, at time.Time) error

	// Message operations
	InsertMessage(ctx context.Context, msg *models.Message) (string, error)
	// ListMessages pages newest-first in storage but returns the page
	// oldest-first, ready for replay.
	ListMessages(ctx context.Context, roomID string, skip, limit int) ([]models.Message, error)
	// MarkRead flips the read flag on every unread message in the room not
	// sent by excludeSender. Batch keyed on (room, sender, unread) so it is
	// safe against concurrent inserts.
	MarkRead(ctx context.Context, roomID, excludeSender string) (int64, error)

	// Stats
	CountRooms(ctx context.Context) (int64, error)
	CountMessages(ctx context.Context) (int64, error)
}
