package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddValidatesSpecAndNames(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("kv:purge", "*/15 * * * *", func(context.Context) error { return nil }))
	assert.Error(t, s.Add("kv:purge", "@hourly", func(context.Context) error { return nil }))
	assert.Error(t, s.Add("broken", "not a spec", func(context.Context) error { return nil }))

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "*/15 * * * *", entries[0].Spec)
}

func TestRunNowRecoversAndReportsErrors(t *testing.T) {
	s := New()
	calls := 0
	require.NoError(t, s.Add("jobs:prune", "@daily", func(context.Context) error {
		calls++
		return errors.New("db locked")
	}))
	require.NoError(t, s.Add("panics", "@daily", func(context.Context) error { panic("boom") }))

	require.NoError(t, s.RunNow("jobs:prune"))
	require.NoError(t, s.RunNow("panics"))
	assert.Equal(t, 1, calls)
	assert.Error(t, s.RunNow("missing"))
}

func TestRunStopsWithContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()
	cancel()
	<-done
}
