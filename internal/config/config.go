// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Backend modes for the entity state layer.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"PIPECRM_DB_PATH" envDefault:"./data/pipecrm.db"`
	ServerHost string `env:"PIPECRM_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"PIPECRM_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"PIPECRM_ENV" envDefault:"development"`
	LogLevel   string `env:"PIPECRM_LOG_LEVEL" envDefault:"info"`

	// Backend selects where entity collections are persisted: "local"
	// keeps them in memory, "remote" syncs them with the records API at
	// RemoteURL. Resolved once at startup.
	Backend     string `env:"PIPECRM_BACKEND" envDefault:"local"`
	RemoteURL   string `env:"PIPECRM_REMOTE_URL"`
	RemoteToken string `env:"PIPECRM_REMOTE_TOKEN"`

	// RemoteCascades declares that the remote store performs the lead
	// conversion cascade server-side, so the client re-fetches instead
	// of creating the customer and contact itself.
	RemoteCascades bool `env:"PIPECRM_REMOTE_CASCADES" envDefault:"false"`

	// Cache configuration
	RedisURL     string `env:"PIPECRM_REDIS_URL"`                       // Optional Redis URL for distributed caching
	CachePrefix  string `env:"PIPECRM_CACHE_PREFIX" envDefault:"crm:"`  // Redis key prefix
	CacheTTL     int    `env:"PIPECRM_CACHE_TTL" envDefault:"60"`       // Default cache TTL in seconds
	CacheMaxSize int    `env:"PIPECRM_CACHE_MAX_SIZE" envDefault:"1000"` // Max memory cache entries

	// ResyncInterval is the cron spec for the periodic remote resync job.
	ResyncInterval string `env:"PIPECRM_RESYNC_CRON" envDefault:"*/5 * * * *"`

	// EventRetentionDays controls how long event log entries are kept.
	EventRetentionDays int `env:"PIPECRM_EVENT_RETENTION_DAYS" envDefault:"90"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// UseRemote returns true if the remote records backend is selected.
func (c Config) UseRemote() bool {
	return c.Backend == BackendRemote
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	switch cfg.Backend {
	case BackendLocal, BackendRemote:
	default:
		return nil, fmt.Errorf("PIPECRM_BACKEND must be %q or %q, got %q", BackendLocal, BackendRemote, cfg.Backend)
	}

	if cfg.UseRemote() && cfg.RemoteURL == "" {
		return nil, fmt.Errorf("PIPECRM_REMOTE_URL is required when PIPECRM_BACKEND=remote")
	}

	return cfg, nil
}
