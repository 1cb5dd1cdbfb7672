package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"eduro/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix = "sess:id:"
	refreshKeyPrefix = "sess:rt:"
)

// RedisSessionStore is the production session store. Session records and the
// refresh token index live under separate keys so token consumption stays a
// single atomic GETDEL.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore constructs a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Save(ctx context.Context, rec Record, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+rec.SessionID.String(), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session record: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID uuid.UUID) (Record, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+sessionID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get session record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode session record: %w", err)
	}
	return rec, nil
}

func (s *RedisSessionStore) ConsumeRefreshToken(ctx context.Context, token string) (Record, error) {
	sessionID, err := s.client.GetDel(ctx, refreshKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("consume refresh token: %w", err)
	}

	id, err := uuid.Parse(sessionID)
	if err != nil {
		return Record{}, sentinel.ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *RedisSessionStore) SaveRefreshToken(ctx context.Context, token string, sessionID uuid.UUID, ttl time.Duration) error {
	if err := s.client.Set(ctx, refreshKeyPrefix+token, sessionID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, sessionKeyPrefix+sessionID.String())
	if rec.RefreshToken != "" {
		pipe.Del(ctx, refreshKeyPrefix+rec.RefreshToken)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
