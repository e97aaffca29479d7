package models

import (
	"time"

	"github.com/google/uuid"
)

// Connection identifies a reachable data source owned by a user.
// (UserID, Name) pairs are unique. The Config field holds the decrypted
// credential bundle; it is encrypted at rest by the service layer and its
// structure varies by source type.
type Connection struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"user_id"`
	Name       string         `json:"name"`
	SourceType string         `json:"source_type"` // "snowflake", "postgres", "sqlserver"
	Config     map[string]any `json:"config"`
	CreatedAt  time.Time      `json:"created_at"`
	LastUsed   *time.Time     `json:"last_used,omitempty"`
}
