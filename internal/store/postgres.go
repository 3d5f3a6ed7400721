package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_rooms (
		room_id TEXT PRIMARY KEY,
		user1_id TEXT NOT NULL,
		user1_name TEXT NOT NULL,
		user2_id TEXT NOT NULL,
		user2_name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_message TEXT,
		last_message_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES chat_rooms(room_id),
		sender_id TEXT NOT NULL,
		sender_name TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_read BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_chat_rooms_user1 ON chat_rooms(user1_id);
	CREATE INDEX IF NOT EXISTS idx_chat_rooms_user2 ON chat_rooms(user2_id);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_room_created ON chat_messages(room_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_unread ON chat_messages(room_id, sender_id) WHERE is_read = FALSE;
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// FindRoom retrieves a room by its canonical id.
func (s *PostgresStore) FindRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT room_id, user1_id, user1_name, user2_id, user2_name, created_at, last_message, last_message_at
		FROM chat_rooms WHERE room_id = $1
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// CreateRoom finds or creates the room for the unordered pair of users.
// The insert is ON CONFLICT DO NOTHING so two participants racing to open
// the same room from different connections converge on one row.
func (s *PostgresStore) CreateRoom(ctx context.Context, userID, userName, targetID, targetName string) (*models.Room, bool, error) {
	roomID := models.RoomID(userID, targetID)

	user1ID, user1Name := userID, userName
	user2ID, user2Name := targetID, targetName
	if user2ID < user1ID {
		user1ID, user2ID = user2ID, user1ID
		user1Name, user2Name = user2Name, user1Name
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO chat_rooms (room_id, user1_id, user1_name, user2_id, user2_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id) DO NOTHING
	`, roomID, user1ID, user1Name, user2ID, user2Name)
	if err != nil {
		return nil, false, err
	}

	room, err := s.FindRoom(ctx, roomID)
	if err != nil {
		return nil, false, err
	}
	return room, tag.RowsAffected() > 0, nil
}

// ListRoomsForUser retrieves the rooms a user participates in, most recent
// activity first, with the count of messages they have not read yet.
func (s *PostgresStore) ListRoomsForUser(ctx context.Context, userID string) ([]models.RoomSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.room_id,
		       CASE WHEN r.user1_id = $1 THEN r.user2_id ELSE r.user1_id END,
		       CASE WHEN r.user1_id = $1 THEN r.user2_name ELSE r.user1_name END,
		       r.last_message, r.last_message_at,
		       (SELECT COUNT(*) FROM chat_messages m
		        WHERE m.room_id = r.room_id AND m.sender_id <> $1 AND m.is_read = FALSE)
		FROM chat_rooms r
		WHERE r.user1_id = $1 OR r.user2_id = $1
		ORDER BY r.last_message_at DESC NULLS LAST, r.created_at DESC
	`, userID)
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
func (s *PostgresStore) TouchRoomLastMessage(ctx context.Context, roomID, text string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE chat_rooms SET last_message = $2, last_message_at = $3 WHERE room_id = $1
	`, roomID, text, at)
	return err
}

// InsertMessage persists a message and returns the assigned id.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg *models.Message) (string, error) {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, room_id, sender_id, sender_name, message, created_at, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.RoomID, msg.SenderID, msg.SenderName, msg.Body, msg.CreatedAt, msg.IsRead)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// ListMessages retrieves one page of a room's history. Storage is queried
// newest-first for pagination; the page is reversed so callers replay it
// oldest-first.
func (s *PostgresStore) ListMessages(ctx context.Context, roomID string, skip, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, sender_id, sender_name, message, created_at, is_read
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
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
func (s *PostgresStore) MarkRead(ctx context.Context, roomID, excludeSender string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE chat_messages SET is_read = TRUE
		WHERE room_id = $1 AND sender_id <> $2 AND is_read = FALSE
	`, roomID, excludeSender)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountRooms returns the total number of rooms.
func (s *PostgresStore) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chat_rooms`).Scan(&count)
	return count, err
}

// CountMessages returns the total number of persisted messages.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chat_messages`).Scan(&count)
	return count, err
}

// reverseMessages flips a newest-first page into replay order.
func reverseMessages(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
