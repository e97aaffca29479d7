package mssql

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/asklantern/lantern-engine/pkg/adapters/datasource"
)

// DefaultOptimizationRules seed the query_guidelines of a fresh SQL Server
// schema configuration.
func DefaultOptimizationRules() []string {
	return []string{
		"Always fully qualify column names with table aliases when multiple tables are involved in a query to avoid ambiguity.",
		"When aggregating data, add appropriate GROUP BY clauses that include all non-aggregated columns in the SELECT statement.",
		"Use TOP instead of unbounded result sets.",
		"Avoid functions on indexed columns in WHERE clauses.",
	}
}

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "sqlserver",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2016+ or Azure SQL Database",
		},
		RequiredFields: RequiredFields(),
		// Default SQL Server collations compare identifiers
		// case-insensitively.
		Fold:                     strings.ToLower,
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
