// Package clock provides the nanosecond-resolution, wall-clock-independent
// time source spec §4.4/§2 calls for.
//
// There is no third-party monotonic-clock library in the example pack, and
// the standard library already does exactly this job: time.Time carries a
// monotonic reading alongside its wall-clock value, and time.Since uses it
// automatically (see the "Monotonic Clocks" section of the time package
// docs) rather than the wall clock, which can step backward under NTP
// correction. This package fixes a single reference instant at process
// start and reports nanoseconds elapsed since it, so a wall-clock step
// never perturbs received_ns ordering.
package clock

import "time"

var epoch = time.Now()

// NowNs returns nanoseconds elapsed since an arbitrary, process-local
// epoch fixed at load time. Only differences between two NowNs() readings
// from the same process are meaningful.
func NowNs() uint64 {
	return uint64(time.Since(epoch).Nanoseconds())
}

// Since returns the elapsed nanoseconds since a prior NowNs() reading.
func Since(startNs uint64) uint64 {
	return NowNs() - startNs
}
