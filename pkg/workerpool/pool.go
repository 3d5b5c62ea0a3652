// Package workerpool provides a bounded goroutine pool with backpressure.
//
// When all workers are busy and the buffer is full, Submit returns
// ErrPoolFull immediately so the caller can decide to retry or reject.
// SubmitCtx blocks until a slot frees up or ctx is done.
//
//	pool := workerpool.New(4)
//	defer pool.Shutdown()
//
//	if err := pool.SubmitCtx(ctx, func() { handle(job) }); err != nil {
//	    // ctx cancelled or pool closed
//	}
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/carepath-academy/carepath/pkg/logger"
)

// ErrPoolFull is returned by Submit when all workers are busy and the task
// queue is at capacity.
var ErrPoolFull = errors.New("workerpool: pool is full")

// ErrPoolClosed is returned by Submit after Shutdown has been called.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// Pool is a bounded goroutine pool.
type Pool struct {
	size    int
	tasks   chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closeCh chan struct{}

	// mu guards closed and the close of tasks against in-flight sends.
	mu     sync.RWMutex
	closed bool
}

// New creates a Pool with the given number of workers (minimum 1).
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}

	p := &Pool{
		size:    size,
		tasks:   make(chan func(), size*2),
		closeCh: make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Submit enqueues task without blocking.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// SubmitWait blocks until a slot is available or the pool is closed.
func (p *Pool) SubmitWait(task func()) error {
	return p.SubmitCtx(context.Background(), task)
}

// SubmitCtx blocks until a slot is available, ctx is done or the pool is
// closed.
func (p *Pool) SubmitCtx(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closeCh:
		return ErrPoolClosed
	}
}

// Shutdown stops accepting new tasks, waits for queued and in-flight tasks to
// complete and releases the workers. Safe to call multiple times.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		close(p.closeCh)

		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()

		p.wg.Wait()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		safeRun(task)
	}
}

// safeRun executes task, recovering from panics so a bad task doesn't kill
// the worker goroutine.
func safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workerpool: task panicked", "panic", fmt.Sprint(r))
		}
	}()
	task()
}
