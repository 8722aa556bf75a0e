package recorder

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"timeskip/internal/broker"
	"timeskip/internal/message"
)

// fakeBus is a broker.Bus stand-in that lets the test drive deliveries
// directly instead of going through a real NATS connection.
type fakeBus struct {
	mu      sync.Mutex
	deliver broker.DeliverFunc
	closed  bool
}

func (b *fakeBus) PublisherFor(subject string) (broker.Publisher, error) {
	return &fakePublisher{}, nil
}

func (b *fakeBus) Subscribe(subjectPattern string, fn broker.DeliverFunc) (broker.Subscription, error) {
	b.mu.Lock()
	b.deliver = fn
	b.mu.Unlock()
	return &fakeSubscription{}, nil
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBus) push(subject string, data []byte) {
	b.mu.Lock()
	fn := b.deliver
	b.mu.Unlock()
	fn(subject, data)
}

type fakePublisher struct{}

func (p *fakePublisher) Publish(data []byte) error { return nil }

type fakeSubscription struct{}

func (s *fakeSubscription) Unsubscribe() error { return nil }

// memWriter is a container.Writer stand-in that appends to a slice instead
// of a file, so recorder tests don't touch the filesystem.
type memWriter struct {
	mu      sync.Mutex
	records []message.Record
	closed  bool
}

func (w *memWriter) Write(rec message.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, rec)
	return nil
}

func (w *memWriter) Flush() error { return nil }

func (w *memWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func (w *memWriter) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

func newTestRecorder(t *testing.T, capacity int) (*Recorder, *fakeBus, *memWriter) {
	t.Helper()
	bus := &fakeBus{}
	writer := &memWriter{}

	rec, err := Create("nats://unused", "test.subject", "unused.zet", capacity, zerolog.Nop(), Deps{Bus: bus, Writer: writer})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := rec.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return rec, bus, writer
}

// waitUntil polls cond every 2ms until it returns true or the deadline
// elapses, at which point it fails the test.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestOverflowSurfaces(t *testing.T) {
	rec, bus, writer := newTestRecorder(t, 4)

	// Push faster than the writer can possibly drain by flooding before
	// yielding, so some pushes are rejected by the ring.
	for i := 0; i < 10; i++ {
		bus.push("test.subject", []byte("x"))
	}

	rec.Stop()

	s := rec.Stats()
	if s.Received != 10 {
		t.Fatalf("Received = %d, want 10", s.Received)
	}
	if s.Dropped+s.Written != 10 {
		t.Fatalf("Dropped+Written = %d, want 10", s.Dropped+s.Written)
	}
	if writer.len() != int(s.Written) {
		t.Fatalf("writer recorded %d records, stats say Written=%d", writer.len(), s.Written)
	}
	// With capacity 4 and 10 rapid pushes, at least some must have been
	// rejected; exact count depends on writer-goroutine scheduling so we
	// only assert the invariant from spec scenario 4 loosely: some drop
	// must have occurred given a ring this small relative to the burst.
	if s.Dropped == 0 {
		t.Fatalf("expected some drops with a burst of 10 into a ring of capacity 4")
	}
}

func TestPauseDrops(t *testing.T) {
	rec, bus, _ := newTestRecorder(t, 1024)

	rec.Pause()
	if !rec.IsPaused() {
		t.Fatalf("IsPaused() = false after Pause()")
	}
	for i := 0; i < 5; i++ {
		bus.push("test.subject", []byte("paused"))
	}

	rec.Resume()
	if rec.IsPaused() {
		t.Fatalf("IsPaused() = true after Resume()")
	}
	for i := 0; i < 5; i++ {
		bus.push("test.subject", []byte("resumed"))
	}

	waitUntil(t, func() bool { return rec.Stats().Written == 5 })
	rec.Stop()

	s := rec.Stats()
	if s.Received != 10 {
		t.Fatalf("Received = %d, want 10", s.Received)
	}
	if s.Dropped != 5 {
		t.Fatalf("Dropped = %d, want 5", s.Dropped)
	}
	if s.Written != 5 {
		t.Fatalf("Written = %d, want 5", s.Written)
	}
	if s.Overflow {
		t.Fatalf("Overflow = true, want false (ring never filled in this scenario)")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rec, _, _ := newTestRecorder(t, 16)
	rec.Stop()
	rec.Stop() // must not panic or block
}

func TestStartFromNonCreatedStateFails(t *testing.T) {
	rec, _, _ := newTestRecorder(t, 16)
	if err := rec.Start(); err == nil {
		t.Fatalf("second Start() should fail, recorder is already Running")
	}
}
