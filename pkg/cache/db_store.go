package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carepath-academy/carepath/pkg/metrics"
)

// Entry is the row behind DBStore.
type Entry struct {
	Key       string     `gorm:"column:cache_key;primaryKey;size:191"`
	Value     string     `gorm:"type:text;not null"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "kv_entries" }

// DBStore is a Store on a plain table, for deployments without Redis.
// Expired rows are invisible to reads and removed by PurgeExpired.
type DBStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *DBStore) live(tx *gorm.DB, key string) *gorm.DB {
	return tx.Where("cache_key = ? AND (expires_at IS NULL OR expires_at > ?)", key, s.now())
}

func (s *DBStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	var e Entry
	err := s.live(s.db.WithContext(ctx), key).Take(&e).Error
	return s.decode(e, err, key, dest)
}

func (s *DBStore) Pull(ctx context.Context, key string, dest any) (bool, error) {
	var (
		e   Entry
		err error
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err = s.live(tx, key).Take(&e).Error
		if err != nil {
			return nil
		}
		return tx.Where("cache_key = ?", key).Delete(&Entry{}).Error
	})
	if txErr != nil {
		return false, fmt.Errorf("cache/db: pull %s: %w", key, txErr)
	}
	return s.decode(e, err, key, dest)
}

func (s *DBStore) decode(e Entry, err error, key string, dest any) (bool, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.CacheMisses.WithLabelValues("database").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache/db: get %s: %w", key, err)
	}
	metrics.CacheHits.WithLabelValues("database").Inc()
	if err := json.Unmarshal([]byte(e.Value), dest); err != nil {
		return false, fmt.Errorf("cache/db: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *DBStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache/db: encode %s: %w", key, err)
	}

	e := Entry{Key: key, Value: string(data), UpdatedAt: s.now()}
	if ttl > 0 {
		exp := s.now().Add(ttl)
		e.ExpiresAt = &exp
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("cache/db: set %s: %w", key, err)
	}
	return nil
}

func (s *DBStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("cache_key IN ?", keys).Delete(&Entry{}).Error
}

// ErrContention is returned by Increment when concurrent writers keep
// winning the compare-and-swap.
var ErrContention = errors.New("cache/db: counter contention")

// Increment bumps a counter with a compare-and-swap on the stored value,
// which works the same on every SQL dialect.
func (s *DBStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	db := s.db.WithContext(ctx)
	for range 20 {
		var e Entry
		err := s.live(db, key).Take(&e).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Where("cache_key = ? AND expires_at <= ?", key, s.now()).Delete(&Entry{}).Error; err != nil {
				return 0, fmt.Errorf("cache/db: incr %s: %w", key, err)
			}
			first := Entry{Key: key, Value: "1", UpdatedAt: s.now()}
			if ttl > 0 {
				exp := s.now().Add(ttl)
				first.ExpiresAt = &exp
			}
			res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&first)
			if res.Error != nil {
				return 0, fmt.Errorf("cache/db: incr %s: %w", key, res.Error)
			}
			if res.RowsAffected == 1 {
				return 1, nil
			}
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("cache/db: incr %s: %w", key, err)
		}

		n, err := strconv.ParseInt(e.Value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cache/db: incr %s: not a counter: %w", key, err)
		}
		res := db.Model(&Entry{}).
			Where("cache_key = ? AND value = ?", key, e.Value).
			Updates(map[string]any{"value": strconv.FormatInt(n+1, 10), "updated_at": s.now()})
		if res.Error != nil {
			return 0, fmt.Errorf("cache/db: incr %s: %w", key, res.Error)
		}
		if res.RowsAffected == 1 {
			return n + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrContention, key)
}

// PurgeExpired deletes rows whose TTL has passed.
func (s *DBStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now()).
		Delete(&Entry{})
	return res.RowsAffected, res.Error
}
