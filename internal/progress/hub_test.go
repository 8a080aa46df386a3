package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	events  []Event
	batches int
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	s.batches++
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func taskEvent(id string) Event {
	return Event{TaskID: id, TS: time.Now(), Stage: StageTaskStart}
}

func TestHub_DeliversEventsToSinks(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: 10 * time.Millisecond}, sink)
	defer hub.Close()

	hub.Emit(taskEvent("t1"))
	hub.Emit(taskEvent("t2"))

	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestHub_FlushesWhenBatchFills(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	// Long wait forces the size trigger, not the timer.
	hub := NewHub(Config{MaxBatchEvents: 4, MaxBatchWait: time.Minute}, sink)
	defer hub.Close()

	for range 4 {
		hub.Emit(taskEvent("t1"))
	}
	require.Eventually(t, func() bool { return sink.count() == 4 }, time.Second, 5*time.Millisecond)
}

func TestHub_CloseDrainsBufferedEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: time.Minute}, sink)

	for range 10 {
		hub.Emit(taskEvent("t1"))
	}
	hub.Close()

	require.Equal(t, 10, sink.count())
}

func TestHub_DropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: time.Minute}, sink)

	hub.Emit(Event{Stage: StageTaskStart}) // no task id
	hub.Close()

	require.Zero(t, sink.count())
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	// No timer flush and a tiny buffer so overflow is deterministic once the
	// run loop is wedged on a slow sink.
	block := make(chan struct{})
	slow := sinkFunc(func(ctx context.Context, _ []Event) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	})
	hub := NewHub(Config{BufferSize: 2, MaxBatchEvents: 1, MaxBatchWait: time.Hour, SinkTimeout: time.Hour}, slow)
	defer func() {
		close(block)
		hub.Close()
	}()

	// First event is picked up by the run loop and stalls in the sink; the
	// rest fill the buffer and overflow.
	for range 10 {
		hub.Emit(taskEvent("t1"))
	}
	require.Eventually(t, func() bool { return hub.Dropped() > 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_EmitAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	hub.Close()
	hub.Close() // idempotent

	hub.Emit(taskEvent("t1"))
	require.Zero(t, sink.count())
}

type sinkFunc func(ctx context.Context, batch []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error { return f(ctx, batch) }
