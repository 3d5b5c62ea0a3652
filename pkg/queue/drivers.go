package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

func jsonEnvelope(typ, payload string) ([]byte, error) {
	return json.Marshal(envelope{Type: typ, Payload: json.RawMessage(payload)})
}

// ── Memory ───────────────────────────────────────────────────────────────────

// MemoryDriver is an in-process, channel-backed driver for development and
// tests. Not durable across restarts.
type MemoryDriver struct {
	ch chan []byte
}

func NewMemoryDriver(buffer int) *MemoryDriver {
	if buffer <= 0 {
		buffer = 1000
	}
	return &MemoryDriver{ch: make(chan []byte, buffer)}
}

func (d *MemoryDriver) Push(ctx context.Context, payload []byte) error {
	select {
	case d.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *MemoryDriver) Pop(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-d.ch:
		return payload, nil
	}
}

func (d *MemoryDriver) Close() error { return nil }

// ── Redis ────────────────────────────────────────────────────────────────────

// RedisDriver keeps immediate jobs in a list (LPUSH/BRPOP) and delayed jobs in
// a sorted set scored by due time.
type RedisDriver struct {
	rdb        *redis.Client
	listKey    string
	delayedKey string
	block      time.Duration
}

func NewRedisDriver(rdb *redis.Client, prefix string) *RedisDriver {
	return &RedisDriver{
		rdb:        rdb,
		listKey:    prefix + "queue:jobs",
		delayedKey: prefix + "queue:delayed",
		block:      5 * time.Second,
	}
}

func (d *RedisDriver) Push(ctx context.Context, payload []byte) error {
	if err := d.rdb.LPush(ctx, d.listKey, payload).Err(); err != nil {
		return fmt.Errorf("queue/redis: push: %w", err)
	}
	return nil
}

func (d *RedisDriver) Pop(ctx context.Context) ([]byte, error) {
	result, err := d.rdb.BRPop(ctx, d.block, d.listKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue/redis: pop: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

func (d *RedisDriver) PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error {
	runAt := float64(time.Now().Add(delay).Unix())
	if err := d.rdb.ZAdd(ctx, d.delayedKey, redis.Z{Score: runAt, Member: string(payload)}).Err(); err != nil {
		return fmt.Errorf("queue/redis: push delayed: %w", err)
	}
	return nil
}

// promote moves due delayed jobs onto the list once a second.
func (d *RedisDriver) promote(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.promoteDue(ctx, time.Now())
		}
	}
}

func (d *RedisDriver) promoteDue(ctx context.Context, now time.Time) int {
	jobs, err := d.rdb.ZRangeByScore(ctx, d.delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil || len(jobs) == 0 {
		return 0
	}
	promoted := 0
	for _, job := range jobs {
		// ZRem guards against two workers promoting the same job.
		if n, err := d.rdb.ZRem(ctx, d.delayedKey, job).Result(); err != nil || n == 0 {
			continue
		}
		if err := d.rdb.LPush(ctx, d.listKey, job).Err(); err == nil {
			promoted++
		}
	}
	return promoted
}

// Close is a no-op: the client is shared with the key-value store.
func (d *RedisDriver) Close() error { return nil }

// ── Kafka ────────────────────────────────────────────────────────────────────

// KafkaDriver publishes jobs to a topic and consumes them in a consumer
// group, so several queue:work processes share the load. Offsets are
// committed when a job is handed to a worker; failures after that end up in
// failed_jobs.
type KafkaDriver struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

func NewKafkaDriver(brokers []string, topic, groupID string) *KafkaDriver {
	return &KafkaDriver{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0,
		}),
	}
}

func (d *KafkaDriver) Push(ctx context.Context, payload []byte) error {
	if err := d.writer.WriteMessages(ctx, kafka.Message{Value: payload, Time: time.Now()}); err != nil {
		return fmt.Errorf("queue/kafka: write: %w", err)
	}
	return nil
}

func (d *KafkaDriver) Pop(ctx context.Context) ([]byte, error) {
	msg, err := d.reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue/kafka: fetch: %w", err)
	}
	if err := d.reader.CommitMessages(ctx, msg); err != nil {
		return nil, fmt.Errorf("queue/kafka: commit: %w", err)
	}
	return msg.Value, nil
}

func (d *KafkaDriver) Close() error {
	werr := d.writer.Close()
	if err := d.reader.Close(); err != nil {
		return err
	}
	return werr
}
