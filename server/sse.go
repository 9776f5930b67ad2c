// ABOUTME: Server-Sent Events writer implementing the wire grammar of spec §6.2: named "turn",
// ABOUTME: "state", "metrics", and "error" frames, plus a keepalive comment heartbeat.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/m3data/mase-engine/engine"
)

// DefaultHeartbeat is the keepalive interval used when a caller doesn't
// override it (spec §6.2).
const DefaultHeartbeat = 5 * time.Second

// SSEWriter writes Server-Sent Events frames and flushes after each one so
// a browser EventSource sees them immediately.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter sets the SSE response headers and wraps w. Returns an error
// if the underlying ResponseWriter does not support flushing.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("server: response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent emits one named SSE frame carrying payload as JSON data.
func (s *SSEWriter) WriteEvent(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteHeartbeat emits a comment-only keepalive frame so idle proxies
// don't drop the connection.
func (s *SSEWriter) WriteHeartbeat() error {
	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// StreamSession reads bus from its current cursor until ctx is cancelled,
// writing each engine.Event as a named SSE frame and a heartbeat whenever
// heartbeat elapses with nothing new (spec §6.2). A reconnecting client
// always gets a fresh cursor via bus.Cursor(), replaying the whole log
// (spec §4.5 at-least-once guarantee).
func StreamSession(ctx context.Context, bus *engine.Bus, w *SSEWriter, heartbeat time.Duration) error {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	cursor := bus.Cursor()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e, next, ok := bus.Read(ctx, cursor, heartbeat)
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := w.WriteHeartbeat(); err != nil {
				return err
			}
			continue
		}
		cursor = next
		if err := writeSSEEvent(w, e); err != nil {
			return err
		}
	}
}

func writeSSEEvent(w *SSEWriter, e engine.Event) error {
	switch e.Type {
	case engine.EventTurn:
		return w.WriteEvent("turn", e.Turn)
	case engine.EventState:
		return w.WriteEvent("state", e.State)
	case engine.EventMetrics:
		return w.WriteEvent("metrics", e.Metrics)
	case engine.EventError:
		return w.WriteEvent("error", e.Err)
	default:
		return nil
	}
}
