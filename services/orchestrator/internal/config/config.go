package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/Devendra181/ECommerceSystem-sub000/pkg/config"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/database"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/messaging"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/registry"
)

// Config holds all configuration for the saga orchestrator.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server (health and metrics only; the orchestrator is event-driven)
	HTTPPort int `env:"ORCHESTRATOR_HTTP_PORT" envDefault:"8010"`

	// SnapshotStore selects where saga snapshots live: "memory" for a single
	// instance, "redis" when running more than one.
	SnapshotStore      string `env:"SNAPSHOT_STORE" envDefault:"memory"`
	SnapshotTTLMinutes int    `env:"SNAPSHOT_TTL_MINUTES" envDefault:"30"`

	RabbitMQ messaging.Config
	Redis    database.RedisConfig
	Consul   registry.Config

	TracingEnabled  bool   `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint string `env:"TRACING_OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load orchestrator config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.SnapshotStore != "memory" && c.SnapshotStore != "redis" {
		return fmt.Errorf("invalid snapshot store: %s", c.SnapshotStore)
	}
	if c.SnapshotTTLMinutes < 1 {
		return fmt.Errorf("snapshot TTL must be positive: %d", c.SnapshotTTLMinutes)
	}
	return nil
}

// SnapshotTTL returns the snapshot lifetime as a duration.
func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLMinutes) * time.Minute
}
