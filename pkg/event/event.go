// Package event provides an in-process event bus. Services fire domain
// events after their transactions commit; listeners fan them out to the
// admin feed and the job queue.
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/carepath-academy/carepath/pkg/logger"
)

// Handler receives an event payload. Errors are logged, never propagated to
// the firing service.
type Handler func(ctx context.Context, payload any) error

type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	wg       sync.WaitGroup
}

func New() *Bus {
	return &Bus{handlers: map[string][]Handler{}}
}

// Listen registers a handler for the given event name.
func (b *Bus) Listen(event string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], h)
}

func (b *Bus) snapshot(event string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Handler(nil), b.handlers[event]...)
}

// Fire runs every listener synchronously, in registration order.
func (b *Bus) Fire(ctx context.Context, event string, payload any) {
	for _, h := range b.snapshot(event) {
		b.call(ctx, event, h, payload)
	}
}

// FireAsync runs listeners on their own goroutines with a context detached
// from the request, so a client disconnect does not cancel them.
func (b *Bus) FireAsync(ctx context.Context, event string, payload any) {
	detached := context.WithoutCancel(ctx)
	for _, h := range b.snapshot(event) {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			b.call(detached, event, h, payload)
		}(h)
	}
}

// Wait blocks until all FireAsync listeners have returned.
func (b *Bus) Wait() { b.wg.Wait() }

func (b *Bus) call(ctx context.Context, event string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCtx(ctx).Error("event: listener panicked", "event", event, "panic", fmt.Sprint(r))
		}
	}()
	if err := h(ctx, payload); err != nil {
		logger.WithCtx(ctx).Error("event: listener failed", "event", event, "error", err)
	}
}

// Flush removes all listeners.
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = map[string][]Handler{}
}
