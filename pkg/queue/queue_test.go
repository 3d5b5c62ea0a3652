package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepath-academy/carepath/pkg/database"
)

type receiptJob struct {
	EnrollmentID uint `json:"enrollment_id"`

	seen chan uint
}

func (j *receiptJob) Handle(context.Context) error {
	j.seen <- j.EnrollmentID
	return nil
}

type flakyJob struct {
	Key string `json:"key"`

	calls *atomic.Int32
}

func (j *flakyJob) Handle(context.Context) error {
	j.calls.Add(1)
	return errors.New("smtp unavailable")
}

func TestDispatchAndRun(t *testing.T) {
	seen := make(chan uint, 4)
	m := New(NewMemoryDriver(10), Options{Workers: 2})
	m.Register(func() Job { return &receiptJob{seen: seen} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = m.Run(ctx); close(done) }()

	require.NoError(t, m.Dispatch(ctx, &receiptJob{EnrollmentID: 12}))

	select {
	case id := <-seen:
		assert.EqualValues(t, 12, id)
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}

	cancel()
	<-done
}

func TestRetriesThenPersistsFailure(t *testing.T) {
	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "q.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&FailedJobRecord{}))

	calls := &atomic.Int32{}
	m := New(NewMemoryDriver(1), Options{MaxRetry: 3, Backoff: time.Millisecond, DB: db})
	m.Register(func() Job { return &flakyJob{calls: calls} })

	raw, err := encode(&flakyJob{Key: "otp-mail"})
	require.NoError(t, err)
	m.Process(context.Background(), raw)

	assert.EqualValues(t, 3, calls.Load())
	require.Len(t, m.FailedJobs(), 1)

	var rec FailedJobRecord
	require.NoError(t, db.First(&rec).Error)
	assert.Equal(t, "*queue.flakyJob", rec.JobType)
	assert.JSONEq(t, `{"key":"otp-mail"}`, rec.Payload)
	assert.Equal(t, "smtp unavailable", rec.Error)
	assert.Equal(t, 3, rec.Attempts)

	// Retry puts it back on the driver and drops the record.
	require.NoError(t, m.Retry(context.Background(), rec.ID))
	popped, err := m.driver.Pop(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(popped))

	var count int64
	db.Model(&FailedJobRecord{}).Count(&count)
	assert.Zero(t, count)
}

func TestUnregisteredTypeIsRecorded(t *testing.T) {
	m := New(NewMemoryDriver(1), Options{})
	m.Process(context.Background(), []byte(`{"type":"*jobs.Gone","payload":{}}`))
	require.Len(t, m.FailedJobs(), 1)
	assert.Equal(t, "*jobs.Gone", m.FailedJobs()[0].Type)
}

func TestRedisDriver(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	d := NewRedisDriver(rdb, "test:")
	d.block = 100 * time.Millisecond
	ctx := context.Background()

	require.NoError(t, d.Push(ctx, []byte("a")))
	require.NoError(t, d.Push(ctx, []byte("b")))

	got, err := d.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", string(got), "FIFO order")

	require.NoError(t, d.PushDelayed(ctx, []byte("later"), time.Hour))
	assert.Zero(t, d.promoteDue(ctx, time.Now()))
	assert.Equal(t, 1, d.promoteDue(ctx, time.Now().Add(2*time.Hour)))

	got, _ = d.Pop(ctx)
	assert.Equal(t, "b", string(got))
	got, _ = d.Pop(ctx)
	assert.Equal(t, "later", string(got))
}
