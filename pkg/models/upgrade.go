package models

import (
	"encoding/json"
	"fmt"
)

// UpgradeDocument decodes a raw stored document and, when it carries the
// legacy "1.0" shape, rewrites it into the canonical flat shape. Legacy
// documents kept structure under "base_schema" and table annotations in a
// side tree at business_context.table_descriptions.
func UpgradeDocument(raw []byte) (*SchemaConfig, error) {
	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decoding schema config: %w", err)
	}

	if probe.Version != "1.0" {
		var cfg SchemaConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decoding schema config: %w", err)
		}
		if cfg.Version == "" {
			cfg.Version = DocumentVersion
		}
		normalize(&cfg)
		return &cfg, nil
	}

	var legacy legacyDocument
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("decoding legacy schema config: %w", err)
	}
	return upgradeLegacy(&legacy), nil
}

type legacyDocument struct {
	BaseSchema      map[string]legacyTable `json:"base_schema"`
	BusinessContext legacyBusinessContext  `json:"business_context"`
	QueryGuidelines QueryGuidelines        `json:"query_guidelines"`
}

type legacyTable struct {
	Fields map[string]FieldConfig `json:"fields"`
}

type legacyBusinessContext struct {
	Description       string                        `json:"description"`
	KeyConcepts       []string                      `json:"key_concepts"`
	TableDescriptions map[string]legacyTableContext `json:"table_descriptions"`
}

type legacyTableContext struct {
	Description       string            `json:"description"`
	FieldDescriptions map[string]string `json:"fields"`
}

func upgradeLegacy(legacy *legacyDocument) *SchemaConfig {
	cfg := NewSchemaConfig(legacy.QueryGuidelines.OptimizationRules)
	cfg.BusinessContext.Description = legacy.BusinessContext.Description
	if len(legacy.BusinessContext.KeyConcepts) > 0 {
		cfg.BusinessContext.KeyConcepts = append([]string{}, legacy.BusinessContext.KeyConcepts...)
	}

	for name, table := range legacy.BaseSchema {
		ctx := legacy.BusinessContext.TableDescriptions[name]
		fields := make(map[string]FieldConfig, len(table.Fields))
		for fname, field := range table.Fields {
			field.Description = ctx.FieldDescriptions[fname]
			fields[fname] = field
		}
		cfg.Tables[name] = TableConfig{Description: ctx.Description, Fields: fields}
	}
	return cfg
}

// normalize fills nil containers so callers can range and index without
// nil checks.
func normalize(cfg *SchemaConfig) {
	if cfg.Tables == nil {
		cfg.Tables = map[string]TableConfig{}
	}
	for name, table := range cfg.Tables {
		if table.Fields == nil {
			table.Fields = map[string]FieldConfig{}
			cfg.Tables[name] = table
		}
	}
	if cfg.BusinessContext.KeyConcepts == nil {
		cfg.BusinessContext.KeyConcepts = []string{}
	}
	if cfg.QueryGuidelines.OptimizationRules == nil {
		cfg.QueryGuidelines.OptimizationRules = []string{}
	}
}
