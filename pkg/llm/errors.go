package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Error classifies a provider failure so callers and the retry package can
// tell transient failures from configuration problems.
type Error struct {
	Message    string
	Retryable  bool
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm: %s (HTTP %d): %v", e.Message, e.StatusCode, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("llm: %s: %v", e.Message, e.Cause)
	}
	return "llm: " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable implements retry.RetryableError.
func (e *Error) IsRetryable() bool { return e.Retryable }

// classifyError maps a raw provider error onto a structured one. Both
// provider SDKs surface HTTP failures as strings, so classification is
// substring based.
func classifyError(err error) *Error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	statusCode := 0
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 529} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			statusCode = code
			break
		}
	}

	switch {
	case strings.Contains(errStr, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") || strings.Contains(lower, "authentication"):
		return &Error{Message: "authentication failed", Retryable: false, StatusCode: statusCode, Cause: err}

	case strings.Contains(lower, "model") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		return &Error{Message: "model not found", Retryable: false, StatusCode: statusCode, Cause: err}

	case strings.Contains(errStr, "429") || strings.Contains(lower, "rate limit") ||
		strings.Contains(errStr, "529") || strings.Contains(lower, "overloaded"):
		return &Error{Message: "rate limited", Retryable: true, StatusCode: statusCode, Cause: err}

	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return &Error{Message: "provider unreachable", Retryable: true, StatusCode: statusCode, Cause: err}

	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") || strings.Contains(errStr, "503"):
		return &Error{Message: "provider server error", Retryable: true, StatusCode: statusCode, Cause: err}
	}

	return &Error{Message: "request failed", Retryable: false, StatusCode: statusCode, Cause: err}
}
