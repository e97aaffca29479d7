package datasource

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// AdapterInfo describes a registered adapter for UI discovery.
type AdapterInfo struct {
	Type        string `json:"type"`         // "snowflake", "postgres", "sqlserver"
	DisplayName string `json:"display_name"` // "Snowflake", "PostgreSQL"
	Description string `json:"description"`
}

// HandleFactory builds a live handle from a decrypted config map.
// The factory must not probe; the connection manager probes after creation.
type HandleFactory func(ctx context.Context, config map[string]any, logger *zap.Logger) (Handle, error)

// AdapterRegistration binds everything the system needs to know about one
// source type. RequiredFields and Factory are registered together so the
// validation gate and the dispatch table can never disagree about a type.
type AdapterRegistration struct {
	Info AdapterInfo

	// RequiredFields lists config keys that must be present and non-empty
	// before a handle is built.
	RequiredFields []string

	// Fold normalizes identifiers for merge comparison. Nil means the
	// source treats identifiers case-sensitively.
	Fold func(string) string

	// DefaultOptimizationRules seed query_guidelines on fresh introspection.
	DefaultOptimizationRules []string

	Factory HandleFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// Lookup returns the registration for a source type.
func Lookup(sourceType string) (AdapterRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[sourceType]
	return reg, ok
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(sourceType string) bool {
	_, ok := Lookup(sourceType)
	return ok
}

// RegisteredAdapters returns info for all registered adapters sorted by type.
// Used by the API to tell the UI which source types are available.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// Fold returns the identifier fold for a source type, identity if the type
// is unknown or case-sensitive.
func Fold(sourceType string) func(string) string {
	if reg, ok := Lookup(sourceType); ok && reg.Fold != nil {
		return reg.Fold
	}
	return func(s string) string { return s }
}
