// internal/session/redis.go
package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"barbearia-twowell/internal/common/errors"
	"barbearia-twowell/internal/models"
)

// DefaultKeyPrefix namespaces session keys in a shared Redis.
const DefaultKeyPrefix = "bot:session:"

// RedisStore keeps state in Redis so it survives restarts and can be shared
// by several bot processes reading the same number.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps client. An empty prefix falls back to DefaultKeyPrefix;
// a ttl of 0 stores keys without expiry.
func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisStore) Get(ctx context.Context, userID string) (models.ConversationState, error) {
	val, err := s.client.Get(ctx, s.key(userID)).Result()
	if err == redis.Nil {
		return models.StateNone, nil
	}
	if err != nil {
		return models.StateNone, errors.NewSessionStoreError("get", err)
	}

	state := models.ConversationState(val)
	if !state.Valid() {
		// Unknown values come from another writer; treat as no pending reply.
		return models.StateNone, nil
	}
	return state, nil
}

func (s *RedisStore) Set(ctx context.Context, userID string, state models.ConversationState) error {
	if err := checkState(state); err != nil {
		return err
	}
	if state == models.StateNone {
		return s.Clear(ctx, userID)
	}
	if err := s.client.Set(ctx, s.key(userID), string(state), s.ttl).Err(); err != nil {
		return errors.NewSessionStoreError("set", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return errors.NewSessionStoreError("clear", err)
	}
	return nil
}
