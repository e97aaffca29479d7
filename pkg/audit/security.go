// Package audit provides security audit logging for SIEM consumption.
// Security-relevant events are logged as structured JSON so they can be
// filtered and alerted on independently of application logs.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection detects SQL
	// injection patterns in a query parameter.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventRejectedGeneratedSQL is logged when a model-generated statement
	// fails the read-only guard before execution.
	EventRejectedGeneratedSQL SecurityEventType = "rejected_generated_sql"
)

// SecurityEvent is an auditable security event with the context a SIEM
// needs to correlate it back to a connection and caller.
type SecurityEvent struct {
	Timestamp    time.Time         `json:"timestamp"`
	EventType    SecurityEventType `json:"event_type"`
	ConnectionID uuid.UUID         `json:"connection_id"`
	UserID       string            `json:"user_id,omitempty"`
	ClientIP     string            `json:"client_ip,omitempty"`
	Details      any               `json:"details"`
	Severity     string            `json:"severity"` // warning, critical
}

// SQLInjectionDetails contains specifics of a detected SQL injection attempt.
type SQLInjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// RejectedSQLDetails contains specifics of a generated statement the
// read-only guard refused.
type RejectedSQLDetails struct {
	Statement string `json:"statement"`
	Reason    string `json:"reason"`
}

// SecurityAuditor logs security events under a dedicated logger namespace.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a security auditor. Events are emitted under
// the "security_audit" namespace for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a detected SQL injection attempt. Logged at
// ERROR with "critical" severity for immediate alerting.
func (a *SecurityAuditor) LogInjectionAttempt(connectionID uuid.UUID, userID, clientIP string, details SQLInjectionDetails) {
	event := SecurityEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    EventSQLInjectionAttempt,
		ConnectionID: connectionID,
		UserID:       userID,
		ClientIP:     clientIP,
		Details:      details,
		Severity:     "critical",
	}

	// Marshaling known types should never fail.
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("connection_id", connectionID.String()),
		zap.String("user_id", userID),
		zap.String("client_ip", clientIP),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("severity", "critical"),
	)
}

// LogRejectedSQL records a generated statement that failed the read-only
// guard. Logged at WARN: usually a model slip rather than an attack, but
// worth tracking for prompt regressions.
func (a *SecurityAuditor) LogRejectedSQL(connectionID uuid.UUID, userID, clientIP string, details RejectedSQLDetails) {
	event := SecurityEvent{
		Timestamp:    time.Now().UTC(),
		EventType:    EventRejectedGeneratedSQL,
		ConnectionID: connectionID,
		UserID:       userID,
		ClientIP:     clientIP,
		Details:      details,
		Severity:     "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("generated SQL rejected by read-only guard",
		zap.String("event_json", string(eventJSON)),
		zap.String("connection_id", connectionID.String()),
		zap.String("user_id", userID),
		zap.String("client_ip", clientIP),
		zap.String("reason", details.Reason),
		zap.String("severity", "warning"),
	)
}
