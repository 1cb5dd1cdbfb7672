package lockout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockoutKeyPrefix = "lockout:"

// RedisStore persists lockout records with Redis-managed expiry, so the
// sliding window works without a cleanup job.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Record, error) {
	raw, err := s.client.Get(ctx, lockoutKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("get lockout record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode lockout record: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Put(ctx context.Context, rec Record, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal lockout record: %w", err)
	}
	if err := s.client.Set(ctx, lockoutKeyPrefix+rec.Key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save lockout record: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, lockoutKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("clear lockout record: %w", err)
	}
	return nil
}
