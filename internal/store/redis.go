package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"learnloop-backend/internal/models"
)

const redisKeyPrefix = "daily_activity:"

// RedisStore keeps each aggregate as a JSON document under its key. Merge is
// a client-side read-modify-write with no locking, so two concurrent merges
// for the same key race and the later SET wins.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*models.DailyActivityAggregate, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	var agg models.DailyActivityAggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &agg, nil
}

func (s *RedisStore) Merge(ctx context.Context, key string, patch Patch) error {
	if err := validatePatch(patch); err != nil {
		return err
	}

	full := redisKeyPrefix + key

	existing := map[string]json.RawMessage{}
	raw, err := s.client.Get(ctx, full).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("merge read %s: %w", key, err)
	}
	if err == nil {
		if err := json.Unmarshal(raw, &existing); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
	}

	for field, value := range patch {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode patch field %q: %w", field, err)
		}
		existing[field] = encoded
	}

	// Write timestamp comes from the redis server, not this process.
	now, err := s.client.Time(ctx).Result()
	if err != nil {
		return fmt.Errorf("merge time: %w", err)
	}
	updated, _ := json.Marshal(now.UTC())
	existing["updated_at"] = updated

	doc, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, full, doc, 0).Err(); err != nil {
		return fmt.Errorf("merge write %s: %w", key, err)
	}
	return nil
}
