// Package config loads runtime settings for the consequence ledger binaries
// from CONSEQUENCE_* environment variables. Command-line flags override
// them in cmd/server.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/warp/consequence-ledger/consequence"
)

// Config holds server and CLI settings.
type Config struct {
	Port           int           `env:"CONSEQUENCE_PORT" envDefault:"8080"`
	DBPath         string        `env:"CONSEQUENCE_DB" envDefault:"consequences.db"`
	TimeZone       string        `env:"CONSEQUENCE_TIMEZONE" envDefault:"UTC"`
	WatchInterval  time.Duration `env:"CONSEQUENCE_WATCH_INTERVAL" envDefault:"2s"`
	AllowedOrigins []string      `env:"CONSEQUENCE_ALLOWED_ORIGINS" envDefault:"http://localhost:5173,http://localhost:3000" envSeparator:","`
	KafkaBrokers   []string      `env:"CONSEQUENCE_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic     string        `env:"CONSEQUENCE_KAFKA_TOPIC" envDefault:"consequence-transactions"`
	Attribution    string        `env:"CONSEQUENCE_ATTRIBUTION" envDefault:"arrival"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Location resolves TimeZone, the default day boundary for profiles without
// their own zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// AttributionOrder resolves Attribution.
func (c Config) AttributionOrder() (consequence.Attribution, error) {
	a, ok := consequence.ParseAttribution(c.Attribution)
	if !ok {
		return a, fmt.Errorf("attribution %q: want arrival or timestamp", c.Attribution)
	}
	return a, nil
}

// MirrorEnabled reports whether appended transactions go to Kafka.
func (c Config) MirrorEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}
