package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/models"
)

const recentMessageTTL = 24 * time.Hour

// RedisStore caches recent room messages for cheap poll fallback and backs
// the rate limiter. The SQL store stays authoritative; everything here is
// best-effort and expires.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for the rate limiter middleware.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// roomRecentKey returns the key for a room's recent-message sorted set.
func roomRecentKey(roomID string) string {
	return fmt.Sprintf("room:%s:recent", roomID)
}

// CacheMessage writes a persisted message through to the room's recent set.
func (s *RedisStore) CacheMessage(ctx context.Context, msg *models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := roomRecentKey(msg.RoomID)

	err = s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(msg.CreatedAt.UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		return err
	}

	// Cap the set and refresh the TTL; cache only, misses fall back to SQL.
	s.client.ZRemRangeByRank(ctx, key, 0, -201)
	s.client.Expire(ctx, key, recentMessageTTL)

	return nil
}

// RecentMessages retrieves up to limit cached messages for a room, oldest
// first. An expired or missing key yields an empty slice, not an error.
func (s *RedisStore) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	key := roomRecentKey(roomID)
	results, err := s.client.ZRevRange(ctx, key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(results))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	reverseMessages(messages)
	return messages, nil
}
