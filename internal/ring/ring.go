// Package ring implements the bounded single-producer/single-consumer queue
// described in spec §4.3. It replaces the teacher's
// pkg/websocket.RingBuffer (a multi-producer ring keyed on []byte) with a
// generic type over the owned message, per spec §9's instruction to factor
// the duplicated ring-buffer code from the two recording backends into one
// SPSC queue parameterized by payload type.
package ring

import "sync/atomic"

// Ring is a bounded SPSC queue of capacity Cap. The zero value is not
// usable; construct with New.
//
// Exactly one goroutine may call Push, and exactly one (possibly different)
// goroutine may call Pop, for the lifetime of the Ring — concurrent Pushes
// or concurrent Pops are not safe. Two counters (write, read) and one
// overflow flag are the only shared state; slot ownership follows counter
// publication as described in spec §4.3 and §5.
type Ring[T any] struct {
	slots    []T
	cap      uint64
	write    atomic.Uint64
	read     atomic.Uint64
	overflow atomic.Bool
}

// New creates a Ring with the given capacity. A non-positive capacity is
// treated as 1.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		slots: make([]T, capacity),
		cap:   uint64(capacity),
	}
}

// Push stores msg in the next slot and returns true, or returns false and
// sets the sticky overflow flag if the ring is full.
//
// The slot store happens before the write counter is published (an
// sync/atomic release store), so Pop never observes a write counter for a
// slot Push has not finished writing.
func (r *Ring[T]) Push(msg T) bool {
	write := r.write.Load()
	read := r.read.Load()

	if write-read >= r.cap {
		r.overflow.Store(true)
		return false
	}

	r.slots[write%r.cap] = msg
	r.write.Store(write + 1)
	return true
}

// Pop removes and returns the oldest message, or ok=false if the ring is
// empty. The returned slot's zero value is stored back before the read
// counter is published, so the producer may reuse the slot once it wraps
// around.
func (r *Ring[T]) Pop() (msg T, ok bool) {
	read := r.read.Load()
	write := r.write.Load()

	if read == write {
		return msg, false
	}

	idx := read % r.cap
	msg = r.slots[idx]
	var zero T
	r.slots[idx] = zero
	r.read.Store(read + 1)
	return msg, true
}

// IsEmpty reports whether the ring currently has no messages queued.
func (r *Ring[T]) IsEmpty() bool {
	return r.read.Load() == r.write.Load()
}

// Len returns the current occupancy: write - read.
func (r *Ring[T]) Len() int {
	return int(r.write.Load() - r.read.Load())
}

// Overflow reports whether the ring has ever rejected a Push because it was
// full. The flag is sticky: once set, it stays set for the life of the
// Ring.
func (r *Ring[T]) Overflow() bool {
	return r.overflow.Load()
}

// Cap returns the ring's fixed capacity.
func (r *Ring[T]) Cap() int {
	return int(r.cap)
}
