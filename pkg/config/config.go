// Package config loads lantern-engine configuration from config.yaml with
// environment variable overrides. Secrets are env-only (yaml:"-" fields).
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for lantern-engine.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // set at load time from build info

	// Engine store (PostgreSQL) configuration
	Database DatabaseConfig `yaml:"database"`

	// Datasource handle cache settings
	Datasource DatasourceConfig `yaml:"datasource"`

	// LLM provider settings for the query pipeline
	LLM LLMConfig `yaml:"llm"`

	// LegacyConfigDir holds pre-database YAML schema configs that can be
	// imported one connection at a time. Empty disables the import path.
	LegacyConfigDir string `yaml:"legacy_config_dir" env:"LEGACY_CONFIG_DIR" env-default:""`

	// Encryption key for connection credentials at rest. 32 bytes,
	// base64 encoded: openssl rand -base64 32. Startup fails without it.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"`
}

// DatabaseConfig holds engine store connection configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"lantern"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // secret, env only
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"lantern_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// ConnectionString returns a PostgreSQL connection string for the engine store.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatasourceConfig holds live-handle cache settings.
type DatasourceConfig struct {
	// HandleTTLMinutes is how long an idle cached handle is kept alive.
	HandleTTLMinutes int `yaml:"handle_ttl_minutes" env:"DATASOURCE_HANDLE_TTL_MINUTES" env-default:"10"`
	// ProbeTimeoutSeconds bounds the round-trip probe on handle reuse.
	ProbeTimeoutSeconds int `yaml:"probe_timeout_seconds" env:"DATASOURCE_PROBE_TIMEOUT_SECONDS" env-default:"5"`
	// InspectTimeoutSeconds bounds a whole introspection pass.
	InspectTimeoutSeconds int `yaml:"inspect_timeout_seconds" env:"DATASOURCE_INSPECT_TIMEOUT_SECONDS" env-default:"120"`
}

// LLMConfig holds the chat completion provider used for query generation.
type LLMConfig struct {
	Provider       string `yaml:"provider" env:"LLM_PROVIDER" env-default:"anthropic"` // "anthropic" or "openai"
	Model          string `yaml:"model" env:"LLM_MODEL" env-default:""`
	BaseURL        string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	APIKey         string `yaml:"-" env:"LLM_API_KEY"` // secret, env only
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"60"`
	MaxTokens      int    `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"2048"`
}

// IsConfigured reports whether the query pipeline can run.
func (c *LLMConfig) IsConfigured() bool {
	return c.APIKey != "" && c.Model != ""
}

// Load reads config.yaml (when present) with environment variable overrides.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read environment: %w", err)
		}
	}

	if cfg.CredentialsKey == "" {
		return nil, errors.New("CREDENTIALS_KEY must be set (openssl rand -base64 32)")
	}

	return cfg, nil
}
