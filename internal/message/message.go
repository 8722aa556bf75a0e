// Package message defines the unit of data carried between the broker
// callback, the ring buffer, the container, and the playback scheduler.
package message

// Record is one captured (or replayed) bus message.
//
// SentNs is the publisher-side timestamp when known; the NATS adapter never
// exposes one, so it is always 0 for now (see internal/broker).
type Record struct {
	SentNs     uint64
	ReceivedNs uint64
	Subject    string
	Payload    []byte
}

// WireSize returns the on-disk size of the record as written by the zet
// container format: the fixed per-record header plus the subject (with its
// terminating NUL) plus the payload.
func (r Record) WireSize() int {
	const fixed = 8 + 8 + 2 + 4 // sent_ns + received_ns + subject_len + payload_size
	return fixed + len(r.Subject) + 1 + len(r.Payload)
}
