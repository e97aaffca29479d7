package datasource

import "fmt"

// ValidationError describes one invalid or missing config field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks a connection config against the registered adapter's
// required fields. It returns every violation found, not just the first, so
// callers building forms can highlight all bad fields at once. An empty
// slice means the config is valid.
func ValidateConfig(sourceType string, config map[string]any) []ValidationError {
	reg, ok := Lookup(sourceType)
	if !ok {
		return []ValidationError{{
			Field:   "source_type",
			Message: fmt.Sprintf("unknown source type %q", sourceType),
		}}
	}

	var violations []ValidationError
	for _, field := range reg.RequiredFields {
		value, present := config[field]
		if !present {
			violations = append(violations, ValidationError{Field: field, Message: "required field is missing"})
			continue
		}
		if s, isString := value.(string); isString && s == "" {
			violations = append(violations, ValidationError{Field: field, Message: "required field is empty"})
		}
	}
	return violations
}
