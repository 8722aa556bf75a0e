// Package recorder implements the ingest-to-disk pipeline of spec §4.1: a
// broker subscription feeds a lock-free SPSC ring, a dedicated writer
// goroutine drains it into a container.Writer.
package recorder

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"timeskip/internal/broker"
	"timeskip/internal/clock"
	"timeskip/internal/container"
	"timeskip/internal/message"
	"timeskip/internal/metrics"
	"timeskip/internal/ring"
	"timeskip/internal/tkerr"
	"timeskip/internal/zet"
)

// DefaultCapacity is used when the caller passes 0 for capacity, per
// spec §4.1 (10,000 for the native container backend).
const DefaultCapacity = 10000

// batchSize bounds how many records the writer goroutine drains per pass
// before flushing, matching the original recorder.c's BATCH_SIZE.
const batchSize = 100

// emptyPollInterval is how long the writer sleeps when the ring has
// nothing queued and recording is still active.
const emptyPollInterval = time.Millisecond

// State is one of the recorder's lifecycle states (spec §3).
type State int

const (
	Created State = iota
	Running
	Paused
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time snapshot of the recorder's counters (spec
// §4.1).
type Stats struct {
	Received     uint64
	Written      uint64
	Dropped      uint64
	BytesWritten uint64
	Overflow     bool
}

// Recorder subscribes to a subject pattern and persists every delivered
// message to a container.Writer. The zero value is not usable; construct
// with Create.
type Recorder struct {
	bus     broker.Bus
	writer  container.Writer
	logger  zerolog.Logger
	warnLim *rate.Limiter

	subjectPattern string
	ring           *ring.Ring[message.Record]
	metrics        *metrics.Recorder

	mu    sync.Mutex
	state State
	sub   broker.Subscription
	wg    sync.WaitGroup

	recording atomic.Bool
	paused    atomic.Bool

	received     atomic.Uint64
	written      atomic.Uint64
	dropped      atomic.Uint64
	bytesWritten atomic.Uint64
}

// Deps bundles the collaborators Create wires up, so tests can substitute
// a fake bus and an in-memory writer without touching the filesystem or a
// real broker.
type Deps struct {
	Bus    broker.Bus
	Writer container.Writer
	// Metrics, if set, is updated live alongside the recorder's own
	// counters so a scraped /metrics endpoint reflects the same numbers
	// Stats() would return. Nil is fine; every update site checks it.
	Metrics *metrics.Recorder
}

// Create validates arguments, opens the output container, and connects to
// the broker (via deps.Bus if provided, otherwise broker.Connect(brokerURL,
// ...)). The container file exists and its header is written before Create
// returns successfully.
func Create(brokerURL, subjectPattern, outputPath string, capacity int, logger zerolog.Logger, deps Deps) (*Recorder, error) {
	if subjectPattern == "" || outputPath == "" {
		return nil, fmt.Errorf("recorder: subject and output path required: %w", tkerr.ErrBadArgs)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	writer := deps.Writer
	if writer == nil {
		w, err := zet.NewWriter(outputPath, clock.NowNs())
		if err != nil {
			return nil, fmt.Errorf("recorder: %w: %w", tkerr.ErrOpenFailed, err)
		}
		writer = w
	}

	bus := deps.Bus
	if bus == nil {
		b, err := broker.Connect(broker.Config{URL: brokerURL}, logger)
		if err != nil {
			writer.Close()
			return nil, err // already wraps tkerr.ErrConnectFailed
		}
		bus = b
	}

	return &Recorder{
		bus:            bus,
		writer:         writer,
		logger:         logger,
		warnLim:        rate.NewLimiter(rate.Every(time.Second), 1),
		subjectPattern: subjectPattern,
		ring:           ring.New[message.Record](capacity),
		metrics:        deps.Metrics,
		state:          Created,
	}, nil
}

// Start installs the subscription and starts the writer goroutine. Only
// valid from Created; returns an error otherwise.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Created {
		return fmt.Errorf("recorder: start called in state %s: %w", r.state, tkerr.ErrBadArgs)
	}

	sub, err := r.bus.Subscribe(r.subjectPattern, r.deliver)
	if err != nil {
		return err // already wraps tkerr.ErrSubscribeFailed
	}

	r.sub = sub
	r.recording.Store(true)
	r.state = Running

	r.wg.Add(1)
	go r.writeLoop()

	return nil
}

// deliver is the broker delivery callback (spec §4.1). It runs on a
// broker-owned goroutine and must never block: allocate-and-copy, then a
// single non-blocking ring push.
func (r *Recorder) deliver(subject string, data []byte) {
	r.received.Add(1)
	if r.metrics != nil {
		r.metrics.Received.Inc()
	}

	if r.paused.Load() {
		r.dropped.Add(1)
		if r.metrics != nil {
			r.metrics.Dropped.Inc()
		}
		return
	}

	rec := message.Record{
		SentNs:     0, // the NATS adapter never exposes a publish timestamp; see SPEC_FULL.md Open Questions.
		ReceivedNs: clock.NowNs(),
		Subject:    subject,
		Payload:    append([]byte(nil), data...),
	}

	if !r.ring.Push(rec) {
		r.dropped.Add(1)
		if r.metrics != nil {
			r.metrics.Dropped.Inc()
			r.metrics.Overflow.Set(1)
		}
		if r.warnLim.Allow() {
			r.logger.Warn().Str("subject", subject).Msg("ring buffer full, dropping message")
		}
	}
}

// writeLoop is the consumer side: drain the ring in batches, write each
// record, flush after a non-empty batch, and sleep briefly when the ring
// is empty. It exits only once recording has been turned off and the ring
// is empty, so nothing enqueued before stop is lost.
func (r *Recorder) writeLoop() {
	defer r.wg.Done()

	for r.recording.Load() || !r.ring.IsEmpty() {
		n := 0
		for n < batchSize {
			rec, ok := r.ring.Pop()
			if !ok {
				break
			}
			if err := r.writer.Write(rec); err != nil {
				r.logger.Warn().Err(err).Msg("container write failed")
				continue
			}
			r.written.Add(1)
			r.bytesWritten.Add(uint64(rec.WireSize()))
			if r.metrics != nil {
				r.metrics.Written.Inc()
				r.metrics.BytesWritten.Add(float64(rec.WireSize()))
			}
			n++
		}

		if n > 0 {
			if err := r.writer.Flush(); err != nil {
				r.logger.Warn().Err(err).Msg("container flush failed")
			}
		} else {
			time.Sleep(emptyPollInterval)
		}
	}
}

// Pause stops new deliveries from being buffered; the subscription stays
// active and paused deliveries still increment Received/Dropped.
func (r *Recorder) Pause() {
	r.paused.Store(true)
	if r.metrics != nil {
		r.metrics.Paused.Set(1)
	}
}

// Resume undoes Pause.
func (r *Recorder) Resume() {
	r.paused.Store(false)
	if r.metrics != nil {
		r.metrics.Paused.Set(0)
	}
}

// IsPaused reports the live paused state.
func (r *Recorder) IsPaused() bool {
	return r.paused.Load()
}

// Stop tears down the subscription and blocks until the writer goroutine
// has drained the ring and released the file. Safe to call once; a second
// call is a no-op. Stop takes the recorder's mutex, unsubscribes, joins the
// writer goroutine and closes the writer and bus, so it runs in an ordinary
// goroutine; cmd/timeskip calls it after a signal arrives on a channel.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.state == Stopped || r.state == Stopping {
		r.mu.Unlock()
		return
	}
	r.state = Stopping
	sub := r.sub
	r.mu.Unlock()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			r.logger.Warn().Err(err).Msg("unsubscribe failed")
		}
	}

	r.recording.Store(false)
	r.wg.Wait()

	if err := r.writer.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("container close failed")
	}
	if err := r.bus.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("broker close failed")
	}

	r.mu.Lock()
	r.state = Stopped
	r.mu.Unlock()
}

// Stats returns a snapshot of the recorder's counters. Safe to call
// concurrently with recording.
func (r *Recorder) Stats() Stats {
	return Stats{
		Received:     r.received.Load(),
		Written:      r.written.Load(),
		Dropped:      r.dropped.Load(),
		BytesWritten: r.bytesWritten.Load(),
		Overflow:     r.ring.Overflow(),
	}
}
