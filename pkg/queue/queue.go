// Package queue runs background jobs (e-mails, PDF deliveries) on a
// pluggable driver: in-process memory, Redis lists or a Kafka topic.
//
//	type ReceiptJob struct{ EnrollmentID uint }
//	func (j *ReceiptJob) Handle(ctx context.Context) error { ... }
//
//	q := queue.New(driver, queue.Options{Workers: 4, DB: db})
//	q.Register(func() queue.Job { return &ReceiptJob{mailer: m} })
//	go q.Run(ctx)
//
//	q.Dispatch(ctx, &ReceiptJob{EnrollmentID: 12})
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/carepath-academy/carepath/pkg/logger"
	"github.com/carepath-academy/carepath/pkg/metrics"
	"github.com/carepath-academy/carepath/pkg/workerpool"
)

// Job is the interface every queued job must satisfy. Exported fields are
// the payload; unexported ones (dependencies) come from the factory.
type Job interface {
	Handle(ctx context.Context) error
}

// Driver is the queue storage backend. Pop returns (nil, nil) when it timed
// out without a job.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context) ([]byte, error)
	Close() error
}

// DelayedDriver is implemented by drivers with native delayed delivery.
type DelayedDriver interface {
	PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error
}

// Dispatcher is what services depend on.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

type Options struct {
	Workers  int
	MaxRetry int
	Backoff  time.Duration // multiplied by the attempt number
	DB       *gorm.DB      // failed_jobs persistence; nil keeps them in memory only
}

// FailedJob holds information about a job that exhausted its retries.
type FailedJob struct {
	Type     string
	Payload  json.RawMessage
	Err      error
	FailedAt time.Time
	Attempts int
}

// Manager is the central queue hub.
type Manager struct {
	driver Driver
	opts   Options

	mu       sync.RWMutex
	registry map[string]func() Job // type name → constructor
	failed   []FailedJob
}

func New(driver Driver, opts Options) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &Manager{driver: driver, opts: opts, registry: map[string]func() Job{}}
}

func typeName(j Job) string { return fmt.Sprintf("%T", j) }

// Register makes a job type available for decoding. The factory is also
// where dependencies get injected.
func (m *Manager) Register(factory func() Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[typeName(factory())] = factory
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encode(job Job) ([]byte, error) {
	name := typeName(job)
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal job %s: %w", name, err)
	}
	env, err := json.Marshal(envelope{Type: name, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return env, nil
}

// Dispatch pushes job onto the queue immediately.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	raw, err := encode(job)
	if err != nil {
		return err
	}
	return m.driver.Push(ctx, raw)
}

// DispatchAfter delivers job after delay. Drivers without native delayed
// delivery get an in-process timer, which does not survive restarts.
func (m *Manager) DispatchAfter(ctx context.Context, job Job, delay time.Duration) error {
	raw, err := encode(job)
	if err != nil {
		return err
	}
	if d, ok := m.driver.(DelayedDriver); ok {
		return d.PushDelayed(ctx, raw, delay)
	}
	time.AfterFunc(delay, func() {
		if err := m.driver.Push(context.Background(), raw); err != nil {
			logger.Error("queue: delayed dispatch failed", "error", err)
		}
	})
	return nil
}

type promoter interface {
	promote(ctx context.Context)
}

// Run pops jobs and executes them on a bounded worker pool until ctx is
// cancelled, then waits for in-flight jobs to finish.
func (m *Manager) Run(ctx context.Context) error {
	pool := workerpool.New(m.opts.Workers)
	defer pool.Shutdown()

	if p, ok := m.driver.(promoter); ok {
		go p.promote(ctx)
	}
	logger.Info("queue: workers started", "count", pool.Size(), "driver", fmt.Sprintf("%T", m.driver))

	// In-flight jobs finish even when the worker is shutting down.
	jobCtx := context.WithoutCancel(ctx)

	for {
		raw, err := m.driver.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("queue: pop failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if raw == nil {
			continue
		}

		if err := pool.SubmitCtx(ctx, func() { m.Process(jobCtx, raw) }); err != nil {
			// Shutting down: hand the job back so it is not lost.
			if perr := m.driver.Push(jobCtx, raw); perr != nil {
				logger.Error("queue: requeue on shutdown failed", "error", perr)
			}
			return nil
		}
	}
}

// Process decodes and runs one raw envelope with retries.
func (m *Manager) Process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		return
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()

	if !ok {
		logger.Warn("queue: unregistered job type", "type", env.Type)
		m.persistFailed(ctx, env, fmt.Errorf("unregistered job type"), 0)
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "type", env.Type, "error", err)
		m.persistFailed(ctx, env, err, 0)
		return
	}

	m.runWithRetry(ctx, job, env)
}

func (m *Manager) runWithRetry(ctx context.Context, job Job, env envelope) {
	var lastErr error
	for attempt := 1; attempt <= m.opts.MaxRetry; attempt++ {
		start := time.Now()
		err := job.Handle(ctx)
		if err == nil {
			metrics.RecordQueueJob(env.Type, "success", start)
			logger.Info("queue: job processed", "type", env.Type, "attempt", attempt)
			return
		}

		lastErr = err
		metrics.RecordQueueJob(env.Type, "failed", start)
		logger.Warn("queue: job failed", "type", env.Type, "attempt", attempt, "error", err)

		if attempt < m.opts.MaxRetry {
			select {
			case <-ctx.Done():
				attempt = m.opts.MaxRetry
			case <-time.After(time.Duration(attempt) * m.opts.Backoff):
			}
		}
	}

	m.persistFailed(ctx, env, lastErr, m.opts.MaxRetry)
	logger.Error("queue: job exhausted retries", "type", env.Type, "error", lastErr)
}

// FailedJobs returns a snapshot of the jobs that failed in this process.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]FailedJob(nil), m.failed...)
}

// Close releases the driver.
func (m *Manager) Close() error { return m.driver.Close() }
