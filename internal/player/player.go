// Package player implements the playback scheduler of spec §4.2: load a
// capture fully into memory, then replay it onto the broker preserving
// inter-arrival timing (modulo a speed multiplier), interleaved with an
// interactive control loop for pause/seek/speed/step.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"timeskip/internal/broker"
	"timeskip/internal/clock"
	"timeskip/internal/container"
	"timeskip/internal/message"
	"timeskip/internal/metrics"
	"timeskip/internal/tkerr"
	"timeskip/internal/zet"
)

// State is one of the player's lifecycle states (spec §3).
type State int

const (
	Loaded State = iota
	Playing
	Paused
	Finished
	Cancelled
)

// minSpeed/maxSpeed bound SetSpeed's clamp range (spec §4.2: [0, 10]).
const (
	minSpeed = 0.0
	maxSpeed = 10.0
	// speedStep is the increment used by the up/down control mapping.
	speedStep = 0.5
	// seekStep is the message count used by the left/right control
	// mapping.
	seekStep = 10
	// waitSlice bounds how long the scheduler sleeps between checks of
	// the interrupt/pause/seek state, so control input stays responsive.
	waitSlice = time.Millisecond
)

// Stats is a point-in-time snapshot of playback progress (spec §4.2).
type Stats struct {
	Total             int
	CurrentMessage    int
	MessagesPublished uint64
	NotPublished      uint64
	Speed             float64
	DurationNs        uint64
	PositionNs        uint64
}

// Deps bundles the collaborators Create wires up, so tests can substitute
// a fake bus and an in-memory reader.
type Deps struct {
	Bus    broker.Bus
	Reader container.Reader
	// Metrics, if set, is updated live alongside the player's own
	// counters so a scraped /metrics endpoint reflects the same numbers
	// Stats() would return. Nil is fine; every update site checks it.
	Metrics *metrics.Player
}

// Player replays a loaded capture onto a broker bus. The zero value is not
// usable; construct with Create.
type Player struct {
	bus      broker.Bus
	logger   zerolog.Logger
	messages []message.Record

	mu           sync.Mutex
	state        State
	currentIndex int
	speed        float64
	anchorNs     uint64 // playback_anchor
	pauseBeginNs uint64

	publishers map[string]broker.Publisher
	metrics    *metrics.Player

	messagesPublished atomic.Uint64
	notPublished      atomic.Uint64

	recordingAnchorNs uint64
	durationNs        uint64
}

// Create opens the broker connection (or uses deps.Bus) and fully loads
// input via deps.Reader (or zet.NewReader(inputPath)). speed<=0 is
// normalized to "unthrottled" (0).
func Create(brokerURL, inputPath string, speed float64, logger zerolog.Logger, deps Deps) (*Player, error) {
	reader := deps.Reader
	if reader == nil {
		r, err := zet.NewReader(inputPath)
		if err != nil {
			if errors.Is(err, tkerr.ErrBadFormat) {
				return nil, err
			}
			return nil, fmt.Errorf("player: %w: %w", tkerr.ErrOpenFailed, err)
		}
		reader = r
	}

	messages, err := loadAll(reader)
	if err != nil {
		return nil, err
	}

	bus := deps.Bus
	if bus == nil {
		b, err := broker.Connect(broker.Config{URL: brokerURL}, logger)
		if err != nil {
			return nil, err
		}
		bus = b
	}

	if speed <= 0 {
		speed = 0
	} else if speed > maxSpeed {
		speed = maxSpeed
	}

	var recordingAnchor, duration uint64
	if len(messages) > 0 {
		recordingAnchor = messages[0].ReceivedNs
		duration = messages[len(messages)-1].ReceivedNs - recordingAnchor
	}

	return &Player{
		bus:               bus,
		logger:            logger,
		messages:          messages,
		state:             Loaded,
		speed:             speed,
		publishers:        make(map[string]broker.Publisher),
		metrics:           deps.Metrics,
		recordingAnchorNs: recordingAnchor,
		durationNs:        duration,
	}, nil
}

func loadAll(r container.Reader) ([]message.Record, error) {
	defer r.Close()

	var messages []message.Record
	for {
		rec, err := r.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("player: %w: %w", tkerr.ErrBadFormat, err)
		}
		messages = append(messages, rec)
	}
	return messages, nil
}

// offsetOf returns messages[i].ReceivedNs - recordingAnchorNs.
func (p *Player) offsetOf(i int) uint64 {
	return p.messages[i].ReceivedNs - p.recordingAnchorNs
}

// deadlineFor computes the anchor-relative deadline for offset, given the
// current speed. Caller holds p.mu.
func (p *Player) deadlineFor(offsetNs uint64) uint64 {
	if p.speed <= 0 {
		return p.anchorNs
	}
	return p.anchorNs + uint64(float64(offsetNs)/p.speed)
}

// rebaseAnchorLocked sets anchorNs so that the message at idx fires
// "now" under the current speed — used by seek/speed-change/skip per
// spec §4.2's timing algorithm. Caller holds p.mu.
func (p *Player) rebaseAnchorLocked(idx int) {
	now := clock.NowNs()
	if idx >= len(p.messages) || p.speed <= 0 {
		p.anchorNs = now
		return
	}
	offset := p.offsetOf(idx)
	scaled := uint64(float64(offset) / p.speed)
	// When scaled > now (nanoseconds since clock's epoch) this wraps below
	// zero; deadlineFor adds the scaled offset back with the same unsigned
	// wraparound, so the deadline for idx still comes out as exactly now.
	p.anchorNs = now - scaled
}

// Run drives the full playback loop until the capture is exhausted, the
// caller cancels ctx, or Cancel() is called. It is the single timing
// loop described in spec §4.2: wait in small slices, check control state
// each slice, publish in capture order.
func (p *Player) Run(ctx context.Context) error {
	p.mu.Lock()
	if len(p.messages) == 0 {
		p.state = Finished
		p.mu.Unlock()
		return nil
	}
	p.state = Playing
	p.rebaseAnchorLocked(p.currentIndex)
	p.mu.Unlock()

	for {
		p.mu.Lock()
		state := p.state
		idx := p.currentIndex
		p.mu.Unlock()

		if state == Cancelled {
			return nil
		}
		if state == Finished || idx >= len(p.messages) {
			p.mu.Lock()
			p.state = Finished
			p.mu.Unlock()
			return nil
		}

		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.state = Cancelled
			p.mu.Unlock()
			return ctx.Err()
		default:
		}

		p.mu.Lock()
		if p.state == Paused {
			p.mu.Unlock()
			time.Sleep(waitSlice)
			continue
		}

		deadline := p.deadlineFor(p.offsetOf(idx))
		now := clock.NowNs()
		if p.speed > 0 && now < deadline {
			p.mu.Unlock()
			time.Sleep(waitSlice)
			continue
		}
		p.mu.Unlock()

		p.publishAt(idx)

		p.mu.Lock()
		p.currentIndex++
		p.mu.Unlock()
	}
}

// publishAt publishes messages[idx] and counts the outcome. Creates and
// caches the subject's publisher if this is the first message on it.
func (p *Player) publishAt(idx int) {
	rec := p.messages[idx]

	p.mu.Lock()
	pub, ok := p.publishers[rec.Subject]
	p.mu.Unlock()

	if !ok {
		newPub, err := p.bus.PublisherFor(rec.Subject)
		if err != nil {
			p.notPublished.Add(1)
			p.logger.Warn().Err(err).Str("subject", rec.Subject).Msg("failed to create publisher")
			return
		}
		p.mu.Lock()
		p.publishers[rec.Subject] = newPub
		p.mu.Unlock()
		pub = newPub
	}

	if err := pub.Publish(rec.Payload); err != nil {
		p.notPublished.Add(1)
		p.logger.Warn().Err(err).Str("subject", rec.Subject).Msg("publish failed")
		return
	}
	p.messagesPublished.Add(1)
	if p.metrics != nil {
		p.metrics.MessagesPublished.Inc()
	}
}

// Step publishes the message at the current index (if not finished) and
// advances by exactly one, regardless of scheduled timing. This realizes
// the true single-message-advance semantics spec §9 calls for, rather than
// running the whole blocking loop the original source's step() did.
func (p *Player) Step() {
	p.mu.Lock()
	idx := p.currentIndex
	if idx >= len(p.messages) {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.publishAt(idx)

	p.mu.Lock()
	p.currentIndex++
	if p.currentIndex >= len(p.messages) {
		p.state = Finished
	} else {
		p.rebaseAnchorLocked(p.currentIndex)
	}
	p.mu.Unlock()
}

// SkipNext advances exactly one step even if the scheduled deadline has
// not elapsed — equivalent to Step when playback is driven by Run, since
// Run's loop calls publishAt/currentIndex++ itself; SkipNext instead
// forces Run's current wait to end immediately by rebasing the anchor to
// "now" for the current index.
func (p *Player) SkipNext() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rebaseAnchorLocked(p.currentIndex)
}

// Seek moves currentIndex by delta, clamped to [0, len(messages)-1], and
// rebases the anchor so the message at the new index is scheduled
// relative to now.
func (p *Player) Seek(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.messages) == 0 {
		return
	}

	newIdx := p.currentIndex + delta
	if newIdx < 0 {
		newIdx = 0
	}
	if max := len(p.messages) - 1; newIdx > max {
		newIdx = max
	}
	p.currentIndex = newIdx
	p.rebaseAnchorLocked(newIdx)
}

// SetSpeed clamps s to [0, 10] and rebases the anchor so progress stays
// continuous across the change.
func (p *Player) SetSpeed(s float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s < minSpeed {
		s = minSpeed
	}
	if s > maxSpeed {
		s = maxSpeed
	}
	if s == p.speed {
		return // idempotent: no anchor rebase on a no-op change.
	}
	p.speed = s
	p.rebaseAnchorLocked(p.currentIndex)
}

// SetSpeedStep implements the up/down key mapping's boundary jump: 0 ->
// 1.0 when speeding up from unthrottled, 0.5 -> 0 when slowing below the
// minimum (spec §4.2, grounded on player.c's 'A'/'B' handlers).
func (p *Player) SetSpeedStep(up bool) {
	p.mu.Lock()
	cur := p.speed
	p.mu.Unlock()

	var next float64
	switch {
	case up && cur == 0:
		next = 1.0
	case up:
		next = cur + speedStep
	case !up && cur > speedStep:
		next = cur - speedStep
	case !up && cur > 0:
		next = 0
	default:
		next = cur
	}
	p.SetSpeed(next)
}

// Pause transitions Playing -> Paused and records the pause start time.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Playing {
		return
	}
	p.state = Paused
	p.pauseBeginNs = clock.NowNs()
}

// Resume transitions Paused -> Playing, shifting the anchor forward by
// the pause duration so scheduled deadlines stay correct.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Paused {
		return
	}
	p.anchorNs += clock.NowNs() - p.pauseBeginNs
	p.state = Playing
}

// IsPaused reports the live paused state.
func (p *Player) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == Paused
}

// IsFinished reports whether playback has reached the end of the
// capture.
func (p *Player) IsFinished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == Finished
}

// Cancel stops Run at the next slice boundary without finishing
// playback.
func (p *Player) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Finished || p.state == Cancelled {
		return
	}
	p.state = Cancelled
}

// Stats returns a snapshot of playback progress.
func (p *Player) Stats() Stats {
	p.mu.Lock()
	idx := p.currentIndex
	speed := p.speed
	p.mu.Unlock()

	var position uint64
	if idx > 0 && idx < len(p.messages) {
		position = p.messages[idx].ReceivedNs - p.recordingAnchorNs
	}

	published := p.messagesPublished.Load()

	if p.metrics != nil {
		p.metrics.CurrentIndex.Set(float64(idx))
		p.metrics.Speed.Set(speed)
		p.metrics.PositionNs.Set(float64(position))
	}

	return Stats{
		Total:             len(p.messages),
		CurrentMessage:    idx,
		MessagesPublished: published,
		NotPublished:      p.notPublished.Load(),
		Speed:             speed,
		DurationNs:        p.durationNs,
		PositionNs:        position,
	}
}
