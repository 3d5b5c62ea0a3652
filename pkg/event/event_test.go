package event

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFireRunsListenersInOrder(t *testing.T) {
	b := New()
	var order []string
	b.Listen("payment.confirmed", func(_ context.Context, p any) error {
		order = append(order, "feed:"+p.(string))
		return nil
	})
	b.Listen("payment.confirmed", func(context.Context, any) error {
		order = append(order, "mail")
		return errors.New("smtp down")
	})
	b.Listen("payment.confirmed", func(context.Context, any) error {
		order = append(order, "after")
		return nil
	})

	b.Fire(context.Background(), "payment.confirmed", "cs_1")
	assert.Equal(t, []string{"feed:cs_1", "mail", "after"}, order, "a failing listener does not stop the rest")
}

func TestFireAsyncSurvivesCancelAndPanic(t *testing.T) {
	b := New()
	var ran atomic.Int32
	b.Listen("enrollment.submitted", func(ctx context.Context, _ any) error {
		if ctx.Err() == nil {
			ran.Add(1)
		}
		return nil
	})
	b.Listen("enrollment.submitted", func(context.Context, any) error { panic("bad listener") })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.FireAsync(ctx, "enrollment.submitted", nil)
	b.Wait()

	assert.EqualValues(t, 1, ran.Load())
}

func TestFlush(t *testing.T) {
	b := New()
	called := false
	b.Listen("x", func(context.Context, any) error { called = true; return nil })
	b.Flush()
	b.Fire(context.Background(), "x", nil)
	assert.False(t, called)
}
