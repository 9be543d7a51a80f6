package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 500

// RedisStore implements Store on a shared redis instance, so every server process
// observes the same invalidations.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a redis-backed store. keyPrefix defaults to "teamboard:" if empty.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "teamboard:"
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s failed: %w", key, err)
	}
	return value, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s failed: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = r.keyPrefix + key
	}

	if err := r.client.Unlink(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis unlink failed: %w", err)
	}
	return nil
}

// DeletePrefix walks the keyspace with SCAN and unlinks matches in batches.
func (r *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	match := escapeGlob(r.keyPrefix+prefix) + "*"
	iter := r.client.Scan(ctx, 0, match, scanBatchSize).Iterator()

	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := r.client.Unlink(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis unlink failed: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s failed: %w", prefix, err)
	}

	if len(batch) > 0 {
		if err := r.client.Unlink(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis unlink failed: %w", err)
		}
	}
	return nil
}

func escapeGlob(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return replacer.Replace(s)
}
