// Package sqlguard validates generated SQL before it reaches a user's
// warehouse. Generated queries must be a single read-only statement.
package sqlguard

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyStatement indicates there is nothing to execute.
	ErrEmptyStatement = errors.New("empty SQL statement")

	// ErrMultipleStatements indicates the query contains more than one SQL
	// statement.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

	// ErrNotReadOnly indicates the statement is not a plain SELECT or WITH
	// query.
	ErrNotReadOnly = errors.New("only read-only SELECT statements are permitted")
)

// writeVerbs are statement keywords that can modify data or schema. They are
// rejected anywhere outside string literals, not just in leading position,
// so WITH ... AS (...) DELETE forms are caught too.
var writeVerbs = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "MERGE": {}, "UPSERT": {},
	"DROP": {}, "ALTER": {}, "CREATE": {}, "TRUNCATE": {}, "RENAME": {},
	"GRANT": {}, "REVOKE": {}, "EXEC": {}, "EXECUTE": {}, "CALL": {},
	"COPY": {}, "PUT": {}, "SET": {}, "USE": {},
}

// CheckStatement validates a generated SQL statement and returns it
// normalized, with the trailing semicolon stripped.
func CheckStatement(sqlQuery string) (string, error) {
	normalized := stripTrailingSemicolon(strings.TrimSpace(sqlQuery))
	if normalized == "" {
		return "", ErrEmptyStatement
	}

	if hasSemicolonOutsideStrings(normalized) {
		return "", ErrMultipleStatements
	}

	upper := strings.ToUpper(normalized)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return "", ErrNotReadOnly
	}
	if verb := firstWriteVerb(normalized); verb != "" {
		return "", fmt.Errorf("statement contains %s: %w", verb, ErrNotReadOnly)
	}

	return normalized, nil
}

// firstWriteVerb scans keywords outside string literals and returns the
// first write verb found, or "".
func firstWriteVerb(sqlQuery string) string {
	var word strings.Builder
	inString := false

	check := func() string {
		if word.Len() == 0 {
			return ""
		}
		token := strings.ToUpper(word.String())
		word.Reset()
		if _, ok := writeVerbs[token]; ok {
			return token
		}
		return ""
	}

	for _, char := range sqlQuery {
		if inString {
			if char == '\'' {
				inString = false
			}
			continue
		}
		switch {
		case char == '\'':
			inString = true
			if verb := check(); verb != "" {
				return verb
			}
		case char == '_' || char >= 'a' && char <= 'z' || char >= 'A' && char <= 'Z' || char >= '0' && char <= '9':
			word.WriteRune(char)
		default:
			if verb := check(); verb != "" {
				return verb
			}
		}
	}
	return check()
}

// hasSemicolonOutsideStrings reports whether any semicolon remains outside
// string literals. The trailing semicolon is stripped before this runs, so
// any hit means a second statement.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}
	return false
}

func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimRight(strings.TrimSuffix(sqlQuery, ";"), " \t\n\r")
	}
	return sqlQuery
}
