// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, stream hub) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the metastore API server.
type Config struct {

	// # Server

	Host        string `env:"HOST" envDefault:"::"`
	Port        string `env:"PORT" envDefault:"4100"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`

	// # Relational Database (PostgreSQL)

	DatabaseURL        string `env:"DATABASE_URL,required"`
	DatabasePoolMax    int    `env:"DATABASE_POOL_MAX" envDefault:"25"`
	DatabasePoolMin    int    `env:"DATABASE_POOL_MIN" envDefault:"5"`
	DatabaseAcquireMs  int    `env:"DATABASE_ACQUIRE_TIMEOUT_MS" envDefault:"5000"`
	PgSchema           string `env:"APPHUB_METASTORE_PG_SCHEMA" envDefault:"metastore"`
	MigrationPath      string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// # Identity / Token Index

	AuthDisabled bool   `env:"APPHUB_AUTH_DISABLED" envDefault:"false"`
	Tokens       string `env:"APPHUB_METASTORE_TOKENS"`
	TokensPath   string `env:"APPHUB_METASTORE_TOKENS_PATH"`

	// # Metrics

	MetricsEnabled bool `env:"APPHUB_METRICS_ENABLED" envDefault:"true"`

	// # Search Presets

	SearchPresets     string `env:"APPHUB_METASTORE_SEARCH_PRESETS"`
	SearchPresetsPath string `env:"APPHUB_METASTORE_SEARCH_PRESETS_PATH"`

	// # Filestore Reconciliation Consumer

	FilestoreSyncEnabled       bool   `env:"METASTORE_FILESTORE_SYNC_ENABLED" envDefault:"false"`
	FilestoreRedisURL          string `env:"FILESTORE_REDIS_URL"`
	RedisURL                   string `env:"REDIS_URL"`
	FilestoreEventsChannel     string `env:"FILESTORE_EVENTS_CHANNEL" envDefault:"metastore:filestore:events"`
	FilestoreNamespace         string `env:"METASTORE_FILESTORE_NAMESPACE" envDefault:"filestore"`
	FilestoreStallThresholdSec int    `env:"METASTORE_FILESTORE_STALL_THRESHOLD_SECONDS" envDefault:"30"`
	AllowInlineMode            bool   `env:"APPHUB_ALLOW_INLINE_MODE" envDefault:"false"`

	// # Schema Registry Cache

	SchemaCacheTTLSeconds           int `env:"APPHUB_METASTORE_SCHEMA_CACHE_TTL_SECONDS" envDefault:"60"`
	SchemaCacheNegativeTTLSeconds   int `env:"APPHUB_METASTORE_SCHEMA_CACHE_NEGATIVE_TTL_SECONDS" envDefault:"0"`
	SchemaCacheRefreshAheadSeconds  int `env:"APPHUB_METASTORE_SCHEMA_CACHE_REFRESH_AHEAD_SECONDS" envDefault:"10"`
	SchemaCacheRefreshIntervalSecs  int `env:"APPHUB_METASTORE_SCHEMA_CACHE_REFRESH_INTERVAL_SECONDS" envDefault:"1"`

	// # Cross-Origin Resource Sharing

	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ExtraAllowedOrigins parses the comma-separated EXTRA_ORIGINS variable into
// a list of additional origins the production CORS policy should accept
// alongside the default apphub.dev suffix.
func (c *Config) ExtraAllowedOrigins() []string {
	if c.ExtraOrigins == "" {
		return nil
	}
	parts := strings.Split(c.ExtraOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// DatabaseURLWithSchema appends the configured PgSchema as a search_path
// connection parameter, so every pgx/migrate connection resolves the
// metastore tables in that schema without each query needing to qualify
// table names. Both pgxpool and golang-migrate's pgx5 driver treat
// unrecognized DSN query parameters as Postgres runtime startup parameters,
// so this is understood identically by the pool and the migrator.
func (c *Config) DatabaseURLWithSchema() string {
	if c.PgSchema == "" {
		return c.DatabaseURL
	}
	separator := "?"
	if strings.Contains(c.DatabaseURL, "?") {
		separator = "&"
	}
	return c.DatabaseURL + separator + "search_path=" + c.PgSchema
}

// EffectiveRedisURL returns the Pub/Sub endpoint the filestore consumer
// should use: FilestoreRedisURL takes precedence over the shared RedisURL,
// and the literal value "inline" selects the in-process transport (only
// permitted when AllowInlineMode is set).
func (c *Config) EffectiveRedisURL() string {
	if c.FilestoreRedisURL != "" {
		return c.FilestoreRedisURL
	}
	return c.RedisURL
}
