// Package postgres implements the datasource adapter for PostgreSQL using
// a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/adapters/datasource"
	"github.com/asklantern/lantern-engine/pkg/apperrors"
	"github.com/asklantern/lantern-engine/pkg/logging"
	"github.com/asklantern/lantern-engine/pkg/models"
)

// Adapter provides PostgreSQL connectivity, introspection and bounded query
// execution over a pgx pool.
type Adapter struct {
	config *Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields must be URL-escaped to handle special characters
// in passwords (e.g., @, /, #, ?) that would otherwise break URL parsing.
func buildConnectionString(cfg *Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		url.QueryEscape(cfg.Database),
		sslMode,
	)
}

// NewAdapter creates a PostgreSQL adapter with its own pool. The caller
// probes it; NewAdapter itself does not round-trip.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, buildConnectionString(cfg))
	if err != nil {
		return nil, apperrors.NewConnectivityError("postgres", "open", err)
	}

	return &Adapter{config: cfg, pool: pool, logger: logger}, nil
}

// Probe verifies the database is reachable with valid credentials and that
// we landed on the configured database rather than a default one.
func (a *Adapter) Probe(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return apperrors.NewConnectivityError("postgres", "probe", err)
	}

	var currentDB string
	if err := a.pool.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return apperrors.NewConnectivityError("postgres", "probe", err)
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

	a.logger.Info("postgres introspection complete",
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
		WHERE table_schema = $1
		AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`

	rows, err := a.pool.Query(ctx, query, a.config.Schema)
	if err != nil {
		return nil, apperrors.NewConnectivityError("postgres", "list tables", err)
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
		return nil, apperrors.NewConnectivityError("postgres", "list tables", err)
	}
	return tables, nil
}

func (a *Adapter) listColumns(ctx context.Context, table string) (map[string]models.FieldConfig, error) {
	const query = `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	rows, err := a.pool.Query(ctx, query, a.config.Schema, table)
	if err != nil {
		return nil, apperrors.NewConnectivityError("postgres", "list columns", err)
	}
	defer rows.Close()

	fields := make(map[string]models.FieldConfig)
	for rows.Next() {
		var name, dataType string
		var nullable bool
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		fields[name] = models.FieldConfig{Type: dataType, Nullable: nullable}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewConnectivityError("postgres", "list columns", err)
	}
	return fields, nil
}

// primaryKeys uses pg_index.indisprimary, which correctly identifies keys
// even when they were created as unique indexes by an ORM. Failure degrades
// to no key data instead of failing the introspection.
func (a *Adapter) primaryKeys(ctx context.Context) (map[string]map[string]bool, bool) {
	const query = `
		SELECT t.relname, a.attname
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE ix.indisprimary = true
		AND n.nspname = $1`

	rows, err := a.pool.Query(ctx, query, a.config.Schema)
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

// Query runs a SELECT statement wrapped with a LIMIT per the Handle contract.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	bounded := fmt.Sprintf("SELECT * FROM (%s) AS _q LIMIT %d",
		strings.TrimRight(strings.TrimSpace(sqlQuery), ";"),
		datasource.EffectiveLimit(limit))

	rows, err := a.pool.Query(ctx, bounded)
	if err != nil {
		return nil, apperrors.NewConnectivityError("postgres", "query", err)
	}
	defer rows.Close()

	columns := make([]string, 0, len(rows.FieldDescriptions()))
	for _, fd := range rows.FieldDescriptions() {
		columns = append(columns, string(fd.Name))
	}

	result := &datasource.QueryResult{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

// Close releases the pool. Safe to call more than once.
func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// Ensure Adapter implements Handle at compile time.
var _ datasource.Handle = (*Adapter)(nil)
