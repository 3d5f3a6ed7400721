package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// default so the server runs without a PostgreSQL instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/forest.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/forest.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// SQLite allows one writer; serialize access through a single conn to
	// avoid SQLITE_BUSY under concurrent sessions.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_rooms (
		room_id TEXT PRIMARY KEY,
		user1_id TEXT NOT NULL,
		user1_name TEXT NOT NULL,
		user2_id TEXT NOT NULL,
		user2_name TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_message TEXT,
		last_message_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES chat_rooms(room_id),
		sender_id TEXT NOT NULL,
		sender_name TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_read INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_chat_rooms_user1 ON chat_rooms(user1_id);
	CREATE INDEX IF NOT EXISTS idx_chat_rooms_user2 ON chat_rooms(user2_id);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_room_created ON chat_messages(room_id, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindRoom retrieves a room by its canonical id.
func (s *SQLiteStore) FindRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room := &models.Room{}
	err := s.db.QueryRowContext(ctx, `
		SELECT room_id, user1_id, user1_name, user2_id, user2_name, created_at, last_message, last_message_at
		FROM chat_rooms WHERE room_id = ?
	`, roomID).Scan(
		&room.RoomID,
		&room.User1ID,
		&room.User1Name,
		&room.User2ID,
		&room.User2Name,
		&room.CreatedAt,
		&room.LastMessage,
		&room.LastMessageAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// CreateRoom finds or creates the room for the unordered pair of users.
// INSERT OR IGNORE makes the racing-create case converge on one row.
func (s *SQLiteStore) CreateRoom(ctx context.Context, userID, userName, targetID, targetName string) (*models.Room, bool, error) {
	roomID := models.RoomID(userID, targetID)

	user1ID, user1Name := userID, userName
	user2ID, user2Name := targetID, targetName
	if user2ID < user1ID {
		user1ID, user2ID = user2ID, user1ID
		user1Name, user2Name = user2Name, user1Name
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO chat_rooms (room_id, user1_id, user1_name, user2_id, user2_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, roomID, user1ID, user1Name, user2ID, user2Name, time.Now().UTC())
	if err != nil {
		return nil, false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	room, err := s.FindRoom(ctx, roomID)
	if err != nil {
		return nil, false, err
	}
	return room, affected > 0, nil
}

// ListRoomsForUser retrieves the rooms a user participates in, most recent
// activity first, with the count of messages they have not read yet.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID string) ([]models.RoomSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.room_id,
		       CASE WHEN r.user1_id = ? THEN r.user2_id ELSE r.user1_id END,
		       CASE WHEN r.user1_id = ? THEN r.user2_name ELSE r.user1_name END,
		       r.last_message, r.last_message_at,
		       (SELECT COUNT(*) FROM chat_messages m
		        WHERE m.room_id = r.room_id AND m.sender_id <> ? AND m.is_read = 0)
		FROM chat_rooms r
		WHERE r.user1_id = ? OR r.user2_id = ?
		ORDER BY r.last_message_at DESC, r.created_at DESC
	`, userID, userID, userID, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.RoomSummary
	for rows.Next() {
		var sum models.RoomSummary
		err := rows.Scan(
			&sum.RoomID,
			&sum.OtherUserID,
			&sum.OtherUserName,
			&sum.LastMessage,
			&sum.LastMessageAt,
			&sum.UnreadCount,
		)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// TouchRoomLastMessage updates the room's denormalized last-message cache.
func (s *SQLiteStore) TouchRoomLastMessage(ctx context.Context, roomID, text string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chat_rooms SET last_message = ?, last_message_at = ? WHERE room_id = ?
	`, text, at, roomID)
	return err
}

// InsertMessage persists a message and returns the assigned id.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *models.Message) (string, error) {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, room_id, sender_id, sender_name, message, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.RoomID, msg.SenderID, msg.SenderName, msg.Body, msg.CreatedAt, msg.IsRead)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// ListMessages retrieves one page of a room's history, returned in replay
// order (oldest first) even though pagination walks newest-first.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string, skip, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, sender_id, sender_name, message, created_at, is_read
		FROM chat_messages
		WHERE room_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, roomID, limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.Body,
			&msg.CreatedAt,
			&msg.IsRead,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverseMessages(messages)
	return messages, nil
}

// MarkRead marks all unread messages in the room not sent by excludeSender
// as read, returning how many were updated.
func (s *SQLiteStore) MarkRead(ctx context.Context, roomID, excludeSender string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_messages SET is_read = 1
		WHERE room_id = ? AND sender_id <> ? AND is_read = 0
	`, roomID, excludeSender)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountRooms returns the total number of rooms.
func (s *SQLiteStore) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_rooms`).Scan(&count)
	return count, err
}

// CountMessages returns the total number of persisted messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_messages`).Scan(&count)
	return count, err
}
