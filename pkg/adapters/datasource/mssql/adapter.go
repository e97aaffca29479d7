// Package mssql implements the datasource adapter for Microsoft SQL Server
// using the go-mssqldb database/sql driver.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/adapters/datasource"
	"github.com/asklantern/lantern-engine/pkg/apperrors"
	"github.com/asklantern/lantern-engine/pkg/logging"
	"github.com/asklantern/lantern-engine/pkg/models"
)

// Adapter provides SQL Server connectivity, introspection and bounded query
// execution over a single database/sql handle.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// buildConnectionString builds a sqlserver:// URL with proper escaping.
func buildConnectionString(cfg *Config) string {
	query := url.Values{}
	query.Add("database", cfg.Database)

	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", cfg.ConnectionTimeout))
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		query.Encode(),
	)
}

// NewAdapter opens a SQL Server connection. The caller probes it; NewAdapter
// itself does not round-trip.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlserver", buildConnectionString(cfg))
	if err != nil {
		return nil, apperrors.NewConnectivityError("sqlserver", "open", err)
	}

	return &Adapter{config: cfg, db: db, logger: logger}, nil
}

// Probe verifies the server is reachable and that we landed on the
// configured database.
func (a *Adapter) Probe(ctx context.Context) error {
	var currentDB string
	if err := a.db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
		return apperrors.NewConnectivityError("sqlserver", "probe", err)
	}
	if !strings.EqualFold(currentDB, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}
	return nil
}

// Inspect enumerates tables and views in the configured schema and builds a
// fresh structural document.
func (a *Adapter) Inspect(ctx context.Context) (*datasource.InspectResult, error) {
	tables, err := a.listTables(ctx)
	if err != nil {
		return nil, err
	}

	pks, pkDegraded := a.primaryKeys(ctx)

	result := &datasource.InspectResult{
		Schema:     models.NewSchemaConfig(DefaultOptimizationRules()),
		PKDegraded: pkDegraded,
	}

	for _, table := range tables {
		fields, err := a.listColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		for name, f := range fields {
			if pks[table][name] {
				f.PrimaryKey = true
				fields[name] = f
			}
		}
		result.Schema.Tables[table] = models.TableConfig{Fields: fields}
	}

	a.logger.Info("sqlserver introspection complete",
		zap.String("schema", a.config.Schema),
		zap.Int("tables", len(result.Schema.Tables)),
		zap.Bool("pkDegraded", pkDegraded),
	)
	return result, nil
}

func (a *Adapter) listTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = @p1
		AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`

	rows, err := a.db.QueryContext(ctx, query, a.config.Schema)
	if err != nil {
		return nil, apperrors.NewConnectivityError("sqlserver", "list tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewConnectivityError("sqlserver", "list tables", err)
	}
	return tables, nil
}

func (a *Adapter) listColumns(ctx context.Context, table string) (map[string]models.FieldConfig, error) {
	const query = `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = @p1 AND table_name = @p2
		ORDER BY ordinal_position`

	rows, err := a.db.QueryContext(ctx, query, a.config.Schema, table)
	if err != nil {
		return nil, apperrors.NewConnectivityError("sqlserver", "list columns", err)
	}
	defer rows.Close()

	fields := make(map[string]models.FieldConfig)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		fields[name] = models.FieldConfig{
			Type:     dataType,
			Nullable: strings.EqualFold(nullable, "YES"),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewConnectivityError("sqlserver", "list columns", err)
	}
	return fields, nil
}

// primaryKeys returns primary-key membership per table, degrading to no key
// data when constraint metadata cannot be read.
func (a *Adapter) primaryKeys(ctx context.Context) (map[string]map[string]bool, bool) {
	const query = `
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = @p1
		AND tc.constraint_type = 'PRIMARY KEY'`

	rows, err := a.db.QueryContext(ctx, query, a.config.Schema)
	if err != nil {
		a.logger.Warn("primary key metadata unavailable, continuing without keys",
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, true
	}
	defer rows.Close()

	pks := make(map[string]map[string]bool)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			a.logger.Warn("primary key row unreadable, continuing without keys",
				zap.String("error", logging.SanitizeError(err)),
			)
			return nil, true
		}
		if pks[table] == nil {
			pks[table] = make(map[string]bool)
		}
		pks[table][column] = true
	}
	if err := rows.Err(); err != nil {
		a.logger.Warn("primary key metadata unavailable, continuing without keys",
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, true
	}
	return pks, false
}

// Query runs a SELECT statement wrapped with TOP per the Handle contract.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	bounded := fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _q",
		datasource.EffectiveLimit(limit),
		strings.TrimRight(strings.TrimSpace(sqlQuery), ";"))

	rows, err := a.db.QueryContext(ctx, bounded)
	if err != nil {
		return nil, apperrors.NewConnectivityError("sqlserver", "query", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Close releases the database connection. Safe to call more than once.
func (a *Adapter) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// scanRows converts database/sql rows into the generic result shape.
func scanRows(rows *sql.Rows) (*datasource.QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	result := &datasource.QueryResult{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

// Ensure Adapter implements Handle at compile time.
var _ datasource.Handle = (*Adapter)(nil)
