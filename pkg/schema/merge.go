// Package schema implements the merge engine that reconciles a freshly
// introspected structural document with a previously annotated configuration.
package schema

import (
	"sort"

	"github.com/asklantern/lantern-engine/pkg/models"
)

// FoldFunc normalizes an identifier before name comparison. Sources that
// treat identifiers case-insensitively supply a case-folding function so
// annotations do not silently vanish when the source reports a different
// casing on refresh.
type FoldFunc func(string) string

// Identity is the fold for sources with case-sensitive identifiers.
func Identity(s string) string { return s }

// Merge combines fresh (authoritative for table/field presence, types,
// nullability and primary keys) with current (authoritative for
// annotations). It is a pure function: neither input is mutated, and the
// same inputs always produce the same result.
//
// A nil current means first introspection; fresh is returned as-is (cloned).
// Tables and fields present only in current are dropped. Tables and fields
// present only in fresh appear with empty descriptions. Query guidelines
// come from current verbatim: an emptied rule list is a user edit and must
// not be repopulated with source defaults.
func Merge(current, fresh *models.SchemaConfig, fold FoldFunc) *models.SchemaConfig {
	if fold == nil {
		fold = Identity
	}
	if current == nil {
		return fresh.Clone()
	}

	result := fresh.Clone()
	result.Version = models.DocumentVersion

	if hasBusinessContext(current) {
		result.BusinessContext = models.BusinessContext{
			Description: current.BusinessContext.Description,
			KeyConcepts: append([]string{}, current.BusinessContext.KeyConcepts...),
		}
	}
	result.QueryGuidelines = models.QueryGuidelines{
		OptimizationRules: append([]string{}, current.QueryGuidelines.OptimizationRules...),
	}

	currentTables := foldKeyed(current.Tables, fold)

	for name, table := range result.Tables {
		prior, ok := currentTables[fold(name)]
		if !ok {
			continue
		}
		if prior.Description != "" {
			table.Description = prior.Description
		}
		priorFields := foldKeyed(prior.Fields, fold)
		for fname, field := range table.Fields {
			pf, ok := priorFields[fold(fname)]
			if !ok || pf.Description == "" {
				continue
			}
			field.Description = pf.Description
			table.Fields[fname] = field
		}
		result.Tables[name] = table
	}

	return result
}

func hasBusinessContext(c *models.SchemaConfig) bool {
	return c.BusinessContext.Description != "" || len(c.BusinessContext.KeyConcepts) > 0
}

// foldKeyed rekeys entries by their folded name. When two names collide on
// the same key (quoted identifiers can preserve case on a case-folding
// source), the name already in folded form wins, otherwise the first in
// sorted order, so the result does not depend on map iteration.
func foldKeyed[T any](entries map[string]T, fold FoldFunc) map[string]T {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]T, len(entries))
	for _, name := range names {
		key := fold(name)
		if _, seen := out[key]; seen && name != key {
			continue
		}
		out[key] = entries[name]
	}
	return out
}
