package mssql

import (
	"fmt"

	"github.com/asklantern/lantern-engine/pkg/jsonutil"
)

// Config contains SQL Server-specific connection options.
// Only SQL authentication (username/password) is supported.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Schema   string // namespace to introspect, defaults to "dbo"

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int // seconds
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// RequiredFields lists config keys that must be present and non-empty.
func RequiredFields() []string {
	return []string{"host", "user", "password", "database"}
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              DefaultPort(),
		Schema:            "dbo",
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
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

	if encrypt, ok := jsonutil.CoerceBool(config["encrypt"]); ok {
		cfg.Encrypt = encrypt
	}

	if trust, ok := jsonutil.CoerceBool(config["trust_server_certificate"]); ok {
		cfg.TrustServerCertificate = trust
	}

	if raw, present := config["connection_timeout"]; present {
		timeout, ok := jsonutil.CoerceInt(raw)
		if !ok {
			return nil, jsonutil.CoerceError("connection_timeout", raw)
		}
		cfg.ConnectionTimeout = timeout
	}

	return cfg, nil
}
