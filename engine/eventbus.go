// ABOUTME: Bounded FIFO event bus decoupling the generation loop from any number of observers.
// ABOUTME: Producers block on a full bus (backpressure); the append-only log lets observers reconnect
// ABOUTME: without losing events already emitted, per spec §3, §4.5, §5.
package engine

import (
	"context"
	"sync"
	"time"
)

// Bus is the session's event bus: a bounded channel absorbs pushes (giving
// backpressure when full) while a single dispatcher goroutine drains it
// into an append-only in-memory log that any number of observers can read
// from independently, at their own cursor. The bus outlives any one
// observer; a reconnecting observer simply opens a new cursor.
type Bus struct {
	in   chan Event
	done chan struct{}

	mu     sync.Mutex
	log    []Event
	closed bool
	notify chan struct{}
	seq    uint64
}

// NewBus creates a Bus with the given bounded channel capacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 64
	}
	b := &Bus{
		in:     make(chan Event, capacity),
		done:   make(chan struct{}),
		notify: make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *Bus) dispatch() {
	for {
		select {
		case e, ok := <-b.in:
			if !ok {
				return
			}
			b.mu.Lock()
			b.seq++
			e.Seq = b.seq
			b.log = append(b.log, e)
			old := b.notify
			b.notify = make(chan struct{})
			close(old)
			b.mu.Unlock()
		case <-b.done:
			return
		}
	}
}

// Push enqueues an event, blocking if the bus is full until room is
// available or ctx is cancelled (spec §4.5 backpressure guarantee).
func (b *Bus) Push(ctx context.Context, e Event) error {
	e.At = time.Now()
	select {
	case b.in <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cursor returns a fresh read cursor starting at the beginning of the log.
// An observer that reconnects simply requests a new cursor; it will see
// every event still in the log, which is never trimmed for the life of the
// session (at-least-once delivery, spec §4.5/§8 property 7).
func (b *Bus) Cursor() int { return 0 }

// Read blocks until an event is available at cursor, the bus closes, ctx is
// cancelled, or timeout elapses (spec §5 suspension point: blocking read of
// the event bus). The returned cursor should be passed to the next Read
// call. ok is false on timeout, close, or cancellation with no event ready.
func (b *Bus) Read(ctx context.Context, cursor int, timeout time.Duration) (Event, int, bool) {
	b.mu.Lock()
	if cursor < len(b.log) {
		e := b.log[cursor]
		b.mu.Unlock()
		return e, cursor + 1, true
	}
	if b.closed {
		b.mu.Unlock()
		return Event{}, cursor, false
	}
	notifyCh := b.notify
	b.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-notifyCh:
		b.mu.Lock()
		defer b.mu.Unlock()
		if cursor < len(b.log) {
			e := b.log[cursor]
			return e, cursor + 1, true
		}
		return Event{}, cursor, false
	case <-timer.C:
		return Event{}, cursor, false
	case <-ctx.Done():
		return Event{}, cursor, false
	}
}

// Len returns the number of events currently in the log, for diagnostics.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.log)
}

// Close stops the dispatcher and wakes any blocked readers. Events pushed
// after Close never reach the log: they fill the bounded channel, and once
// it is full Push blocks until its ctx is cancelled. Callers must stop
// pushing before closing.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	old := b.notify
	b.notify = make(chan struct{})
	close(old)
	b.mu.Unlock()
	close(b.done)
}
