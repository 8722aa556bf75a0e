// Package config loads the tunables that aren't exposed as CLI flags:
// reconnect backoff, default ring capacity, and observability settings.
// Styled after the teacher's ws/config.go: struct tags parsed by
// github.com/caarlos0/env, an optional .env file via
// github.com/joho/godotenv, and validation before use.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds tunables shared by both the record and play subcommands.
// Flags (parsed separately in cmd/timeskip) always win over these; these
// win over the struct's own defaults.
type Config struct {
	// Broker connection.
	BrokerMaxReconnects   int           `env:"TIMESKIP_BROKER_MAX_RECONNECTS" envDefault:"10"`
	BrokerReconnectWait   time.Duration `env:"TIMESKIP_BROKER_RECONNECT_WAIT" envDefault:"1s"`
	BrokerReconnectJitter time.Duration `env:"TIMESKIP_BROKER_RECONNECT_JITTER" envDefault:"200ms"`
	BrokerMaxPingsOut     int           `env:"TIMESKIP_BROKER_MAX_PINGS_OUT" envDefault:"3"`
	BrokerPingInterval    time.Duration `env:"TIMESKIP_BROKER_PING_INTERVAL" envDefault:"10s"`

	// Recorder.
	RingCapacity int `env:"TIMESKIP_RING_CAPACITY" envDefault:"10000"`

	// Observability.
	MetricsAddr string `env:"TIMESKIP_METRICS_ADDR" envDefault:""`
	LogLevel    string `env:"TIMESKIP_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"TIMESKIP_LOG_FORMAT" envDefault:"json"`
}

// Load reads a .env file if present (ignored if missing — production
// deployments set real environment variables) then parses the process
// environment into a Config, applying envDefault tags for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.RingCapacity <= 0 {
		return fmt.Errorf("TIMESKIP_RING_CAPACITY must be > 0, got %d", c.RingCapacity)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("TIMESKIP_LOG_LEVEL must be one of debug/info/warn/error, got %q", c.LogLevel)
	}

	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("TIMESKIP_LOG_FORMAT must be one of json/pretty, got %q", c.LogFormat)
	}

	return nil
}
