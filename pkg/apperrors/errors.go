// Package apperrors defines the error taxonomy shared across lantern-engine.
//
// Two error classes cross component boundaries: ConfigError (the caller supplied
// bad input, never retried) and ConnectivityError (the environment failed,
// retry-eligible). Soft conditions like permission-degraded introspection or a
// merge fallback are NOT errors; they travel as flags on results.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrCredentialsKeyMismatch means stored credentials were encrypted with a
	// different key than the one the server is running with.
	ErrCredentialsKeyMismatch = errors.New("connection credentials were encrypted with a different key")
)

// ConfigError reports invalid or missing connection configuration.
// It is the caller's fault and must never be retried internally.
type ConfigError struct {
	SourceType string
	Fields     []string // offending field names, may be empty for type-level problems
	Reason     string
}

func (e *ConfigError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("invalid %s config: %s: %s", e.SourceType, e.Reason, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("invalid %s config: %s", e.SourceType, e.Reason)
}

// NewConfigError builds a ConfigError for the given source type.
func NewConfigError(sourceType, reason string, fields ...string) *ConfigError {
	return &ConfigError{SourceType: sourceType, Reason: reason, Fields: fields}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ConnectivityError reports a failure to reach or authenticate against a data
// source. Callers may retry at their discretion; the retry package recognizes
// it via IsRetryable.
type ConnectivityError struct {
	SourceType string
	Op         string // "connect", "probe", "introspect", "query"
	Err        error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.SourceType, e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsRetryable marks connectivity failures as retry-eligible for pkg/retry.
func (e *ConnectivityError) IsRetryable() bool { return true }

// NewConnectivityError wraps err as a ConnectivityError.
func NewConnectivityError(sourceType, op string, err error) *ConnectivityError {
	return &ConnectivityError{SourceType: sourceType, Op: op, Err: err}
}

// IsConnectivityError reports whether err is (or wraps) a ConnectivityError.
func IsConnectivityError(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}
