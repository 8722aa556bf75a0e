// Package container defines the abstract surfaces a capture backend
// implements. The native .zet format (internal/zet) is the only
// implementation carried by this repo; a second backend built on an
// existing chunked log format could implement the same two interfaces
// without the recorder or player knowing the difference.
package container

import "timeskip/internal/message"

// Writer appends framed records to a capture and flushes on demand.
type Writer interface {
	// Write emits exactly one record.
	Write(rec message.Record) error
	// Flush forces buffered bytes to the OS.
	Flush() error
	// Close flushes and releases the underlying file.
	Close() error
}

// Reader streams framed records back out in the order they were written.
type Reader interface {
	// ReadMessage returns the next record, or io.EOF when the capture is
	// exhausted. A truncated trailing record is reported as ErrBadFormat,
	// distinct from a clean EOF.
	ReadMessage() (message.Record, error)
	// StartTime returns the capture's header start timestamp.
	StartTime() uint64
	// Close releases the underlying file.
	Close() error
}
