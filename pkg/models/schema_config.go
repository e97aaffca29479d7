package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DocumentVersion is the canonical schema configuration document shape.
// Version "1.0" nested annotations under business_context.table_descriptions;
// documents found in that shape are upgraded once on read (see UpgradeDocument).
const DocumentVersion = "2.0"

// SchemaConfig is the annotatable schema configuration document for exactly
// one connection. Structure is authoritative from introspection; descriptions,
// business context and query guidelines are user-authored.
type SchemaConfig struct {
	Version         string                 `json:"version"`
	Tables          map[string]TableConfig `json:"tables"`
	BusinessContext BusinessContext        `json:"business_context"`
	QueryGuidelines QueryGuidelines        `json:"query_guidelines"`
}

// TableConfig describes one queryable table or view.
type TableConfig struct {
	Description string                 `json:"description"`
	Fields      map[string]FieldConfig `json:"fields"`
}

// FieldConfig carries a column's structural facts and its annotation.
// All structural attributes plus Description are always present, even when
// Description is empty.
type FieldConfig struct {
	Type        string `json:"type"`
	Nullable    bool   `json:"nullable"`
	PrimaryKey  bool   `json:"primary_key"`
	Description string `json:"description"`
}

// BusinessContext is pure annotation with no structural counterpart.
type BusinessContext struct {
	Description string   `json:"description"`
	KeyConcepts []string `json:"key_concepts"`
}

// QueryGuidelines holds source-specific defaults extendable by the user.
type QueryGuidelines struct {
	OptimizationRules []string `json:"optimization_rules"`
}

// NewSchemaConfig returns an empty document in the canonical shape with the
// given default optimization rules.
func NewSchemaConfig(defaultRules []string) *SchemaConfig {
	return &SchemaConfig{
		Version:         DocumentVersion,
		Tables:          map[string]TableConfig{},
		BusinessContext: BusinessContext{KeyConcepts: []string{}},
		QueryGuidelines: QueryGuidelines{OptimizationRules: append([]string{}, defaultRules...)},
	}
}

// Clone returns a deep copy. Merge and annotation operations never mutate a
// caller's document.
func (c *SchemaConfig) Clone() *SchemaConfig {
	if c == nil {
		return nil
	}
	out := &SchemaConfig{
		Version: c.Version,
		Tables:  make(map[string]TableConfig, len(c.Tables)),
		BusinessContext: BusinessContext{
			Description: c.BusinessContext.Description,
			KeyConcepts: append([]string{}, c.BusinessContext.KeyConcepts...),
		},
		QueryGuidelines: QueryGuidelines{
			OptimizationRules: append([]string{}, c.QueryGuidelines.OptimizationRules...),
		},
	}
	for name, table := range c.Tables {
		fields := make(map[string]FieldConfig, len(table.Fields))
		for fname, f := range table.Fields {
			fields[fname] = f
		}
		out.Tables[name] = TableConfig{Description: table.Description, Fields: fields}
	}
	return out
}

// TableNames returns table names in sorted order.
func (c *SchemaConfig) TableNames() []string {
	names := make([]string, 0, len(c.Tables))
	for name := range c.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldNames returns field names of a table in sorted order, nil if the
// table does not exist.
func (c *SchemaConfig) FieldNames(table string) []string {
	t, ok := c.Tables[table]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(t.Fields))
	for name := range t.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldInfo returns a field record and whether it exists.
func (c *SchemaConfig) FieldInfo(table, field string) (FieldConfig, bool) {
	t, ok := c.Tables[table]
	if !ok {
		return FieldConfig{}, false
	}
	f, ok := t.Fields[field]
	return f, ok
}

// StoredSchemaConfig is the persistence envelope around a document.
type StoredSchemaConfig struct {
	ID           uuid.UUID     `json:"id"`
	ConnectionID uuid.UUID     `json:"connection_id"`
	UserID       uuid.UUID     `json:"user_id"`
	Document     *SchemaConfig `json:"document"`
	CreatedAt    time.Time     `json:"created_at"`
	LastModified time.Time     `json:"last_modified"`
}
