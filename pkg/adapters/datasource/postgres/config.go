package postgres

import (
	"fmt"

	"github.com/asklantern/lantern-engine/pkg/jsonutil"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Schema   string // namespace to introspect, defaults to "public"
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// RequiredFields lists config keys that must be present and non-empty.
func RequiredFields() []string {
	return []string{"host", "user", "password", "database"}
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:    DefaultPort(),
		Schema:  "public",
		SSLMode: DefaultSSLMode(),
	}

	if cfg.Host = jsonutil.CoerceString(config["host"]); cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}

	if raw, present := config["port"]; present {
		port, ok := jsonutil.CoerceInt(raw)
		if !ok {
			return nil, jsonutil.CoerceError("port", raw)
		}
		cfg.Port = port
	}

	if cfg.User = jsonutil.CoerceString(config["user"]); cfg.User == "" {
		return nil, fmt.Errorf("user is required")
	}

	cfg.Password = jsonutil.CoerceString(config["password"])

	if cfg.Database = jsonutil.CoerceString(config["database"]); cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}

	if schema := jsonutil.CoerceString(config["schema"]); schema != "" {
		cfg.Schema = schema
	}

	if sslMode := jsonutil.CoerceString(config["ssl_mode"]); sslMode != "" {
		cfg.SSLMode = sslMode
	}

	return cfg, nil
}
