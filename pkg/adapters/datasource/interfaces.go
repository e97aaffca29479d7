// Package datasource defines the adapter contract for source databases and
// the registry that dispatches on a connection's source type.
package datasource

import (
	"context"

	"github.com/asklantern/lantern-engine/pkg/models"
)

// Handle is a live, reusable connection to a source database.
// Each implementation owns its connection and must be closed when done.
type Handle interface {
	// Probe verifies the handle is still usable with a trivial round-trip.
	// Returns nil if the source is reachable, error otherwise.
	Probe(ctx context.Context) error

	// Inspect enumerates tables, views and columns in the target namespace
	// and returns a fresh structural document with empty annotations.
	// Primary-key discovery degrades softly: if the principal cannot read
	// constraint metadata the result flags the degradation instead of
	// failing the whole operation.
	Inspect(ctx context.Context) (*InspectResult, error)

	// Query runs a SELECT statement and returns bounded results.
	// The query is always wrapped with a dialect-specific limit:
	//   - limit <= 0: uses MaxQueryLimit
	//   - limit > MaxQueryLimit: capped to MaxQueryLimit
	Query(ctx context.Context, sqlQuery string, limit int) (*QueryResult, error)

	// Close releases the database connection. Safe to call more than once.
	Close() error
}

// MaxQueryLimit is the hard cap on rows returned by Query.
// This protects against unbounded queries that could crash the server.
const MaxQueryLimit = 1000

// InspectResult carries a fresh structural document plus degradation state.
type InspectResult struct {
	Schema *models.SchemaConfig

	// PKDegraded is true when constraint metadata could not be read and
	// every column was recorded as non-key.
	PKDegraded bool
}

// QueryResult contains the results of a SQL query execution.
type QueryResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// EffectiveLimit applies the Query limit policy.
func EffectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}
