// Package sse streams the admin live feed as Server-Sent Events for
// dashboards behind proxies that drop WebSocket upgrades.
//
//	msgs, ok := hub.Subscribe(r.Context())
//	stream, err := sse.New(w, r)
//	...
//	stream.Pipe(msgs, 25*time.Second)
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnsupported is returned by New when the writer cannot flush.
var ErrUnsupported = errors.New("sse: streaming not supported")

// Stream is one open event-stream response.
type Stream struct {
	w   http.ResponseWriter
	r   *http.Request
	rc  *http.ResponseController
	seq int
}

// New writes the event-stream headers. The server write deadline is
// lifted for the lifetime of the stream.
func New(w http.ResponseWriter, r *http.Request) (*Stream, error) {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return &Stream{w: w, r: r, rc: rc}, nil
}

// Send writes one named event. data must not contain newlines; JSON from
// encoding/json never does.
func (s *Stream) Send(event string, data []byte) error {
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, data); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Comment writes a keepalive line that clients ignore.
func (s *Stream) Comment(msg string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", strings.ReplaceAll(msg, "\n", " ")); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Pipe forwards JSON frames from msgs until the client disconnects or msgs
// is closed. A frame's "type" field becomes the event name.
func (s *Stream) Pipe(msgs <-chan []byte, heartbeat time.Duration) error {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-s.r.Context().Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := s.Send(eventName(msg), msg); err != nil {
				return err
			}
		case <-ticker.C:
			if err := s.Comment("ping"); err != nil {
				return err
			}
		}
	}
}

func eventName(frame []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(frame, &head) != nil || head.Type == "" {
		return "message"
	}
	return head.Type
}
