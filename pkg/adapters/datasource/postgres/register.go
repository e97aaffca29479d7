package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/adapters/datasource"
)

// DefaultOptimizationRules seed the query_guidelines of a fresh PostgreSQL
// schema configuration.
func DefaultOptimizationRules() []string {
	return []string{
		"Always fully qualify column names with table aliases when multiple tables are involved in a query to avoid ambiguity.",
		"When aggregating data, add appropriate GROUP BY clauses that include all non-aggregated columns in the SELECT statement.",
		"Prefer indexed columns in WHERE and JOIN clauses.",
		"Use EXPLAIN ANALYZE to verify query plans on large tables.",
	}
}

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
		},
		RequiredFields: RequiredFields(),
		// PostgreSQL stores identifiers case-sensitively; introspection
		// returns the stored spelling, so no fold is needed.
		Fold:                     nil,
		DefaultOptimizationRules: DefaultOptimizationRules(),
		Factory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.Handle, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
