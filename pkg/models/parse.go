package models

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseDocument decodes a schema configuration export. Exports may be JSON
// or YAML and may use the legacy layout; either way the result is a
// canonical document. YAML is a superset of JSON, so a single decode
// handles both.
func ParseDocument(raw []byte) (*SchemaConfig, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decoding schema document: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("schema document is empty")
	}

	// Re-encode as JSON so the upgrade path sees one wire format.
	encoded, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("normalizing schema document: %w", err)
	}
	return UpgradeDocument(encoded)
}
