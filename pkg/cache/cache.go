// Package cache stores short-lived JSON values with a TTL in a backend that
// every app instance shares: Redis, or a database table when Redis is not
// deployed. Password-reset codes and OAuth state live here.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/config"
)

// Store is a TTL key-value store holding JSON-encoded values.
type Store interface {
	// Get decodes the value at key into dest. found is false on a miss or
	// when the entry has expired.
	Get(ctx context.Context, key string, dest any) (found bool, err error)
	// Set stores value under key for ttl. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Pull is Get followed by Delete, atomically.
	Pull(ctx context.Context, key string, dest any) (found bool, err error)
	Delete(ctx context.Context, keys ...string) error
	// Increment atomically adds one to the counter at key and returns the
	// new value. A missing counter starts at zero and lives for ttl.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Purger is implemented by stores that need expired entries swept.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// RDB is the shared Redis client once ConnectRedis succeeds. The Redis queue
// driver reuses it.
var RDB *redis.Client

// ConnectRedis initialises RDB and verifies it with a ping.
func ConnectRedis(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword(),
		DB:       config.Int("REDIS_DB", 0),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("cache: redis ping: %w", err)
	}
	RDB = client
	return nil
}

// New builds the Store selected by KV_DRIVER. "redis" requires
// ConnectRedis to have succeeded; otherwise the database table is used.
func New(db *gorm.DB) Store {
	if config.KVDriver() == "redis" && RDB != nil {
		return NewRedisStore(RDB, "carepath:")
	}
	return NewDBStore(db)
}
