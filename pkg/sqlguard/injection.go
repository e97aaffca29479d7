package sqlguard

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes an injection pattern found in a
// user-supplied value.
type InjectionCheckResult struct {
	Fingerprint string
	ParamName   string
	ParamValue  any
}

// CheckValueForInjection scans one user-supplied value for SQL injection
// patterns. Only strings are scanned; numbers and booleans cannot carry a
// payload. Returns nil when the value is clean.
func CheckValueForInjection(paramName string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Fingerprint: string(fingerprint),
		ParamName:   paramName,
		ParamValue:  value,
	}
}

// CheckAllValues scans a map of user-supplied values and returns a result
// per dirty value. An empty slice means everything is clean.
func CheckAllValues(values map[string]any) []*InjectionCheckResult {
	results := make([]*InjectionCheckResult, 0)
	for name, value := range values {
		if result := CheckValueForInjection(name, value); result != nil {
			results = append(results, result)
		}
	}
	return results
}
