package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tripflow/platform/pkg/intake"
)

// RedisStore keeps sessions as JSON values with a TTL, so an abandoned
// submission eventually expires on its own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(owner int64) string {
	return fmt.Sprintf("intake:session:%d", owner)
}

func (s *RedisStore) Get(ctx context.Context, owner int64) (*intake.WorkingSubmission, error) {
	data, err := s.client.Get(ctx, sessionKey(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var ws intake.WorkingSubmission
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &ws, nil
}

func (s *RedisStore) Put(ctx context.Context, owner int64, ws *intake.WorkingSubmission) error {
	data, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return s.client.Set(ctx, sessionKey(owner), data, s.ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context, owner int64) error {
	return s.client.Del(ctx, sessionKey(owner)).Err()
}
