package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeNamesEventsByType(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/events", nil)

	stream, err := New(rec, req)
	require.NoError(t, err)

	msgs := make(chan []byte, 2)
	msgs <- []byte(`{"type":"payment.confirmed","data":{"sessionId":"cs_1"}}`)
	msgs <- []byte(`not json`)
	close(msgs)
	require.NoError(t, stream.Pipe(msgs, time.Minute))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "id: 1\nevent: payment.confirmed\ndata: {\"type\":\"payment.confirmed\"")
	assert.Contains(t, body, "id: 2\nevent: message\ndata: not json\n\n")
}

func TestPipeStopsWhenClientLeaves(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	stream, err := New(rec, req)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- stream.Pipe(make(chan []byte), 10*time.Millisecond) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Pipe did not return after disconnect")
	}
	assert.True(t, strings.Contains(rec.Body.String(), ": ping\n\n"))
}
