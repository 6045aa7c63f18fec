// redis_store.go - go-redis v9 adapter implementing the ratelimit.Store interface.
package ratelimit

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore wraps a go-redis client and satisfies the Store interface.
type RedisStore struct {
	c goredis.Cmdable
}

// NewRedisStore creates a RedisStore from a go-redis client.
func NewRedisStore(c goredis.Cmdable) *RedisStore {
	return &RedisStore{c: c}
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.c.Incr(ctx, key).Result()
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.c.Expire(ctx, key, ttl).Err()
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.c.TTL(ctx, key).Result()
}
