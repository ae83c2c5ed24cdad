package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const keepAliveInterval = 15 * time.Second

// SSEWriter streams a react run as server-sent events. Tool results arrive
// from parallel goroutines, so every write holds mu. After the first failed
// write (client gone) further events are dropped.
type SSEWriter struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	nextID int
	err    error
}

func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &SSEWriter{w: w, rc: http.NewResponseController(w)}
}

// Send writes one event with a sequential id.
func (s *SSEWriter) Send(event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.write("id: %d\nevent: %s\ndata: %s\n\n", s.nextID, event, b)
}

// KeepAlive sends a comment line every interval until ctx ends, so proxies
// do not drop the stream while a long function call is in flight.
func (s *SSEWriter) KeepAlive(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			err := s.write(": keep-alive\n\n")
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *SSEWriter) write(format string, args ...any) error {
	if s.err != nil {
		return s.err
	}
	if _, err := fmt.Fprintf(s.w, format, args...); err != nil {
		s.err = err
		return err
	}
	if err := s.rc.Flush(); err != nil {
		s.err = err
	}
	return s.err
}
