// Package snowflake implements the datasource adapter for Snowflake
// warehouses using the gosnowflake database/sql driver.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/adapters/datasource"
	"github.com/asklantern/lantern-engine/pkg/apperrors"
	"github.com/asklantern/lantern-engine/pkg/logging"
	"github.com/asklantern/lantern-engine/pkg/models"
)

// Adapter provides Snowflake connectivity, introspection and bounded query
// execution over a single database/sql handle.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter opens a Snowflake connection. The caller probes it; NewAdapter
// itself does not round-trip.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn, err := sf.DSN(&sf.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("build snowflake dsn: %w", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, apperrors.NewConnectivityError("snowflake", "open", err)
	}

	return &Adapter{config: cfg, db: db, logger: logger}, nil
}

// Probe verifies the warehouse is reachable with valid credentials.
func (a *Adapter) Probe(ctx context.Context) error {
	var one int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return apperrors.NewConnectivityError("snowflake", "probe", err)
	}
	return nil
}

// Inspect enumerates tables and views in the connection's schema namespace
// and builds a fresh structural document. Views are treated as queryable
// tables; no structural distinction is kept. Primary-key discovery degrades
// softly when the principal lacks constraint metadata rights.
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
		result.Schema.Tables[a.tableKey(table)] = models.TableConfig{Fields: fields}
	}

	a.logger.Info("snowflake introspection complete",
		zap.Int("tables", len(result.Schema.Tables)),
		zap.Bool("pkDegraded", pkDegraded),
	)
	return result, nil
}

func (a *Adapter) tableKey(table string) string {
	if a.config.QualifyNames {
		return fmt.Sprintf("%s.%s.%s", a.config.Database, a.config.Schema, table)
	}
	return table
}

func (a *Adapter) listTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = CURRENT_SCHEMA()
		AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewConnectivityError("snowflake", "list tables", err)
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
		return nil, apperrors.NewConnectivityError("snowflake", "list tables", err)
	}
	return tables, nil
}

func (a *Adapter) listColumns(ctx context.Context, table string) (map[string]models.FieldConfig, error) {
	const query = `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = ?
		AND table_schema = CURRENT_SCHEMA()
		ORDER BY ordinal_position`

	rows, err := a.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, apperrors.NewConnectivityError("snowflake", "list columns", err)
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
			Nullable: nullable == "YES",
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewConnectivityError("snowflake", "list columns", err)
	}
	return fields, nil
}

// primaryKeys returns the primary-key membership per table. A failure here
// is not fatal: the principal may lack constraint metadata rights, in which
// case every column is reported as non-key and degraded is true.
func (a *Adapter) primaryKeys(ctx context.Context) (map[string]map[string]bool, bool) {
	const query = `
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = CURRENT_SCHEMA()
		AND tc.constraint_type = 'PRIMARY KEY'`

	rows, err := a.db.QueryContext(ctx, query)
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
	bounded := fmt.Sprintf("SELECT * FROM (%s) LIMIT %d",
		strings.TrimRight(strings.TrimSpace(sqlQuery), ";"),
		datasource.EffectiveLimit(limit))

	rows, err := a.db.QueryContext(ctx, bounded)
	if err != nil {
		return nil, apperrors.NewConnectivityError("snowflake", "query", err)
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
