package snowflake

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/adapters/datasource"
)

// DefaultOptimizationRules seed the query_guidelines of a fresh Snowflake
// schema configuration.
func DefaultOptimizationRules() []string {
	return []string{
		"Always fully qualify column names with table aliases when multiple tables are involved in a query to avoid ambiguity.",
		"When aggregating data, add appropriate GROUP BY clauses that include all non-aggregated columns in the SELECT statement.",
		"Use CLUSTER BY for frequently filtered columns.",
		"Consider materialized views for complex aggregations.",
		"Leverage result caching for repeated queries.",
		"Use appropriate warehouse sizes for query complexity.",
	}
}

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "snowflake",
			DisplayName: "Snowflake",
			Description: "Connect to a Snowflake warehouse",
		},
		RequiredFields: RequiredFields(),
		// Snowflake folds unquoted identifiers to upper case.
		Fold:                     strings.ToUpper,
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
