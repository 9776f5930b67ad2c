// ABOUTME: Tests for the SSE wire grammar: named frames, keepalive comments, and streaming
// ABOUTME: a session bus to a reconnecting observer.
package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/m3data/mase-engine/engine"
)

func TestWriteEventFrameGrammar(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	if err != nil {
		t.Fatalf("NewSSEWriter() error = %v", err)
	}

	if err := w.WriteEvent("turn", map[string]any{"turn_number": 1}); err != nil {
		t.Fatalf("WriteEvent() error = %v", err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: turn\ndata: ") {
		t.Errorf("frame = %q, want event line then data line", body)
	}
	if !strings.HasSuffix(body, "\n\n") {
		t.Errorf("frame = %q, want blank-line terminator", body)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}
}

func TestWriteHeartbeatIsKeepaliveComment(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	if err != nil {
		t.Fatalf("NewSSEWriter() error = %v", err)
	}
	if err := w.WriteHeartbeat(); err != nil {
		t.Fatalf("WriteHeartbeat() error = %v", err)
	}
	if got := rec.Body.String(); got != ": keepalive\n\n" {
		t.Errorf("heartbeat = %q, want \": keepalive\" comment frame", got)
	}
}

func TestStreamSessionReplaysAndOrders(t *testing.T) {
	bus := engine.NewBus(16)
	defer bus.Close()

	ctx := context.Background()
	_ = bus.Push(ctx, engine.Event{Type: engine.EventTurn, Turn: &engine.TurnEvent{TurnNumber: 1, AgentID: "orin", Content: "first"}})
	_ = bus.Push(ctx, engine.Event{Type: engine.EventState, State: &engine.StateEvent{State: engine.StateRunning}})
	_ = bus.Push(ctx, engine.Event{Type: engine.EventTurn, Turn: &engine.TurnEvent{TurnNumber: 2, AgentID: "zara", Content: "second"}})

	// Give the dispatcher a moment to drain into the replay log.
	deadline := time.Now().Add(time.Second)
	for bus.Len() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	streamCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	if err != nil {
		t.Fatalf("NewSSEWriter() error = %v", err)
	}
	_ = StreamSession(streamCtx, bus, w, 50*time.Millisecond)

	body := rec.Body.String()
	first := strings.Index(body, `"first"`)
	state := strings.Index(body, "event: state")
	second := strings.Index(body, `"second"`)
	if first < 0 || state < 0 || second < 0 {
		t.Fatalf("stream missing frames:\n%s", body)
	}
	if !(first < state && state < second) {
		t.Errorf("frames out of order: first=%d state=%d second=%d", first, state, second)
	}

	// A second observer connecting later replays the same events from the
	// start of the log.
	streamCtx2, cancel2 := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel2()
	rec2 := httptest.NewRecorder()
	w2, _ := NewSSEWriter(rec2)
	_ = StreamSession(streamCtx2, bus, w2, 50*time.Millisecond)
	if !strings.Contains(rec2.Body.String(), `"first"`) {
		t.Error("reconnecting observer did not see replayed events")
	}
}

func TestStreamSessionEmitsKeepaliveWhenIdle(t *testing.T) {
	bus := engine.NewBus(4)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	w, _ := NewSSEWriter(rec)
	_ = StreamSession(ctx, bus, w, 20*time.Millisecond)

	if !strings.Contains(rec.Body.String(), ": keepalive") {
		t.Errorf("idle stream = %q, want keepalive comments", rec.Body.String())
	}
}
