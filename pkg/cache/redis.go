package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carepath-academy/carepath/pkg/metrics"
)

// RedisStore keeps entries as JSON strings with native Redis expiry.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	return s.decode(val, err, key, dest)
}

func (s *RedisStore) Pull(ctx context.Context, key string, dest any) (bool, error) {
	val, err := s.rdb.GetDel(ctx, s.prefix+key).Bytes()
	return s.decode(val, err, key, dest)
}

func (s *RedisStore) decode(val []byte, err error, key string, dest any) (bool, error) {
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache/redis: get %s: %w", key, err)
	}
	metrics.CacheHits.WithLabelValues("redis").Inc()
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("cache/redis: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache/redis: encode %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache/redis: set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}
	return s.rdb.Del(ctx, full...).Err()
}

func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.rdb.Incr(ctx, s.prefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("cache/redis: incr %s: %w", key, err)
	}
	if n == 1 && ttl > 0 {
		if err := s.rdb.Expire(ctx, s.prefix+key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("cache/redis: expire %s: %w", key, err)
		}
	}
	return n, nil
}
