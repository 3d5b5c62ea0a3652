package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesConnectedClient(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Upgrade(w, r, hub)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish("payment.confirmed", map[string]any{"sessionId": "cs_test_1"})

	var ev struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "payment.confirmed", ev.Type)
	assert.Equal(t, "cs_test_1", ev.Data["sessionId"])

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestAllowOrigins(t *testing.T) {
	check := AllowOrigins([]string{"https://admin.carepath.test"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(r), "non-browser clients send no Origin")

	r.Header.Set("Origin", "https://admin.carepath.test")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.test")
	assert.False(t, check(r))
}

func TestSubscribeReceivesAndUnregisters(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	subCtx, leave := context.WithCancel(ctx)
	msgs, ok := hub.Subscribe(subCtx)
	require.True(t, ok)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish("enrollment.submitted", map[string]any{"enrollmentId": 7})
	select {
	case msg := <-msgs:
		assert.Contains(t, string(msg), `"type":"enrollment.submitted"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	leave()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	_, open := <-msgs
	assert.False(t, open)
}
