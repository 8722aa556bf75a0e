// Package tkerr holds the sentinel error kinds shared across the recorder,
// player, container, and broker packages (spec §7). Callers use errors.Is
// against these, never string matching; each layer wraps with fmt.Errorf's
// %w the way the teacher's pkg/nats client does.
package tkerr

import "errors"

var (
	// ErrBadArgs is returned when a required argument is missing or a path
	// is malformed.
	ErrBadArgs = errors.New("bad arguments")
	// ErrConnectFailed is returned when the broker refuses a connection.
	ErrConnectFailed = errors.New("broker connect failed")
	// ErrOpenFailed is returned when the filesystem can't open/create the
	// target path.
	ErrOpenFailed = errors.New("open failed")
	// ErrSubscribeFailed is returned when the broker rejects a subscription
	// pattern.
	ErrSubscribeFailed = errors.New("subscribe failed")
	// ErrTaskSpawnFailed is returned when the OS refuses to start the
	// writer goroutine. Go's runtime doesn't fail goroutine creation the
	// way pthread_create can, so this is kept for parity with the
	// contract and reserved for a future bounded-goroutine-pool backend.
	ErrTaskSpawnFailed = errors.New("task spawn failed")
	// ErrBadFormat is returned when a capture's header has the wrong magic
	// or version, or a record is truncated mid-read.
	ErrBadFormat = errors.New("bad capture format")
)
