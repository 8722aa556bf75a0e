// Package broker defines the narrow surface the recorder and player
// consume from a pub/sub message bus (spec §4.5), and a NATS-backed
// implementation of it.
package broker

// DeliverFunc is invoked for each message delivered to a subscription. It
// may run on any broker-owned thread/goroutine, and data is only valid for
// the duration of the call — implementations must copy anything they need
// to keep.
type DeliverFunc func(subject string, data []byte)

// Publisher publishes byte payloads to a single, fixed subject.
type Publisher interface {
	Publish(data []byte) error
}

// Subscription is a live subscription that can be torn down.
type Subscription interface {
	Unsubscribe() error
}

// Bus is the minimal publish/subscribe surface the core depends on. It
// deliberately does not expose reconnection policy — that is set through
// broker.Config when the concrete broker.NATS is connected, never in code
// that takes a Bus.
type Bus interface {
	// PublisherFor returns a cached or newly created publisher bound to
	// subject.
	PublisherFor(subject string) (Publisher, error)
	// Subscribe installs fn as the delivery callback for subjectPattern.
	// The broker's own subscription semantics govern wildcard matching.
	Subscribe(subjectPattern string, fn DeliverFunc) (Subscription, error)
	// Close releases the connection and any live subscriptions.
	Close() error
}
