package snowflake

import (
	"fmt"

	"github.com/asklantern/lantern-engine/pkg/jsonutil"
)

// Config contains Snowflake-specific connection options.
type Config struct {
	Account   string
	User      string
	Password  string
	Database  string
	Warehouse string
	Schema    string
	Role      string // optional

	// QualifyNames stores table keys as DATABASE.SCHEMA.TABLE instead of
	// the bare table name.
	QualifyNames bool
}

// RequiredFields lists config keys that must be present and non-empty.
func RequiredFields() []string {
	return []string{"account", "user", "password", "database", "warehouse", "schema"}
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{}

	for key, dst := range map[string]*string{
		"account":   &cfg.Account,
		"user":      &cfg.User,
		"password":  &cfg.Password,
		"database":  &cfg.Database,
		"warehouse": &cfg.Warehouse,
		"schema":    &cfg.Schema,
	} {
		value := jsonutil.CoerceString(config[key])
		if value == "" {
			return nil, fmt.Errorf("%s is required", key)
		}
		*dst = value
	}

	cfg.Role = jsonutil.CoerceString(config["role"])
	if qualify, ok := jsonutil.CoerceBool(config["qualify_names"]); ok {
		cfg.QualifyNames = qualify
	}

	return cfg, nil
}
