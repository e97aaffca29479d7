package mssql

import (
	"strings"
	"testing"

	"github.com/asklantern/lantern-engine/pkg/adapters/datasource"
)

func validConfigMap() map[string]any {
	return map[string]any{
		"host":     "sql.example.com",
		"user":     "analyst",
		"password": "s3cret",
		"database": "analytics",
	}
}

func TestFromMapDefaults(t *testing.T) {
	cfg, err := FromMap(validConfigMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 1433 {
		t.Errorf("expected default port 1433, got %d", cfg.Port)
	}
	if cfg.Schema != "dbo" {
		t.Errorf("expected default schema dbo, got %q", cfg.Schema)
	}
	if !cfg.Encrypt {
		t.Error("encryption must default to on")
	}
	if cfg.ConnectionTimeout != 30 {
		t.Errorf("expected default timeout 30, got %d", cfg.ConnectionTimeout)
	}
}

func TestFromMapOverrides(t *testing.T) {
	m := validConfigMap()
	m["port"] = float64(14330)
	m["schema"] = "sales"
	m["encrypt"] = false
	m["trust_server_certificate"] = true
	m["connection_timeout"] = float64(10)

	cfg, err := FromMap(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 14330 || cfg.Schema != "sales" || cfg.Encrypt || !cfg.TrustServerCertificate || cfg.ConnectionTimeout != 10 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestFromMapStringScalars(t *testing.T) {
	m := validConfigMap()
	m["port"] = "14330"
	m["encrypt"] = "false"

	cfg, err := FromMap(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 14330 {
		t.Errorf("expected port 14330, got %d", cfg.Port)
	}
	if cfg.Encrypt {
		t.Error("string false must disable encryption")
	}
}

func TestFromMapMissingRequired(t *testing.T) {
	for _, field := range []string{"host", "user", "database"} {
		m := validConfigMap()
		delete(m, field)
		if _, err := FromMap(m); err == nil {
			t.Errorf("expected error when %s is missing", field)
		}
	}
}

func TestBuildConnectionString(t *testing.T) {
	cfg, _ := FromMap(validConfigMap())
	cfg.Password = "p@ss:word"

	connStr := buildConnectionString(cfg)
	if strings.Contains(connStr, "p@ss:word") {
		t.Error("password must be URL-escaped")
	}
	if !strings.HasPrefix(connStr, "sqlserver://") {
		t.Errorf("unexpected scheme in %q", connStr)
	}
	if !strings.Contains(connStr, "database=analytics") {
		t.Errorf("database missing from %q", connStr)
	}
	if !strings.Contains(connStr, "encrypt=true") {
		t.Errorf("encrypt missing from %q", connStr)
	}
}

func TestRegistration(t *testing.T) {
	reg, ok := datasource.Lookup("sqlserver")
	if !ok {
		t.Fatal("sqlserver adapter not registered")
	}
	if reg.Fold("Orders") != "orders" {
		t.Error("sqlserver must fold identifiers to lower case")
	}
	if len(reg.RequiredFields) != 4 {
		t.Errorf("expected 4 required fields, got %v", reg.RequiredFields)
	}
}
