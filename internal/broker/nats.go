package broker

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"timeskip/internal/tkerr"
)

// DefaultURL is used when the caller and NATS_URL both leave the server
// unspecified (spec §6).
const DefaultURL = "nats://localhost:4222"

// Config mirrors the teacher's pkg/nats.Config: connection and reconnect
// tuning, nothing domain-specific.
type Config struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectJitter time.Duration
	MaxPingsOut     int
	PingInterval    time.Duration
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 10
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = time.Second
	}
	if c.MaxPingsOut == 0 {
		c.MaxPingsOut = 3
	}
	if c.PingInterval == 0 {
		c.PingInterval = 10 * time.Second
	}
	return c
}

// NATS is a Bus backed by github.com/nats-io/nats.go, styled after the
// teacher's pkg/nats.Client: the same reconnect option set and connection
// event handlers logging through the shared structured logger instead of
// *log.Logger.
type NATS struct {
	conn   *nats.Conn
	logger zerolog.Logger

	mu         sync.Mutex
	publishers map[string]*natsPublisher
}

var _ Bus = (*NATS)(nil)

// Connect dials url (applying Config.withDefaults for anything left zero)
// and returns a ready-to-use Bus, or wraps tkerr.ErrConnectFailed.
func Connect(cfg Config, logger zerolog.Logger) (*NATS, error) {
	cfg = cfg.withDefaults()

	b := &NATS{
		logger:     logger,
		publishers: make(map[string]*natsPublisher),
	}

	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(cfg.ReconnectJitter, cfg.ReconnectJitter),
		nats.MaxPingsOutstanding(cfg.MaxPingsOut),
		nats.PingInterval(cfg.PingInterval),
		nats.ConnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("connected to broker")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("disconnected from broker")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("reconnected to broker")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Warn().Err(err).Msg("broker error")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("broker: connect %s: %w: %w", cfg.URL, tkerr.ErrConnectFailed, err)
	}

	b.conn = conn
	return b, nil
}

// PublisherFor returns a cached publisher for subject, creating one on
// first use.
func (b *NATS) PublisherFor(subject string) (Publisher, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.publishers[subject]; ok {
		return p, nil
	}

	p := &natsPublisher{conn: b.conn, subject: subject}
	b.publishers[subject] = p
	return p, nil
}

// Subscribe installs fn for subjectPattern. Delivery runs on a
// goroutine owned by nats.go's internal dispatcher, serialized per
// subscription — exactly the single-producer guarantee the ring buffer
// depends on.
func (b *NATS) Subscribe(subjectPattern string, fn DeliverFunc) (Subscription, error) {
	sub, err := b.conn.Subscribe(subjectPattern, func(msg *nats.Msg) {
		fn(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("broker: subscribe %s: %w: %w", subjectPattern, tkerr.ErrSubscribeFailed, err)
	}
	return &natsSubscription{sub: sub}, nil
}

// Close closes the connection. Cached publishers are not removed.
func (b *NATS) Close() error {
	if b.conn != nil {
		b.conn.Close()
	}
	return nil
}

type natsPublisher struct {
	conn    *nats.Conn
	subject string
}

func (p *natsPublisher) Publish(data []byte) error {
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("broker: publish %s: %w", p.subject, err)
	}
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("broker: unsubscribe: %w", err)
	}
	return nil
}
