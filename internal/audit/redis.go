package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iwvelando/pdn-calculator/pkg/constants"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the entries of each request in a Redis list.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps client. A zero ttl keeps entries forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = constants.DefaultAuditKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(requestID string) string {
	return s.prefix + requestID
}

// Append pushes the entry onto the request's list and refreshes its TTL.
func (s *RedisStore) Append(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	key := s.key(e.RequestID)
	if err := s.client.RPush(ctx, key, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to push audit entry: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to set audit entry ttl: %w", err)
		}
	}
	return nil
}

// ByRequestID returns the entries of one request in insertion order.
func (s *RedisStore) ByRequestID(ctx context.Context, requestID string) ([]Entry, error) {
	raw, err := s.client.LRange(ctx, s.key(requestID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit entries: %w", err)
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to decode audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
