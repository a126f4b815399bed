package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Log matches the audit_logs table schema.
type Log struct {
	ID           uuid.UUID       `json:"id"`
	OwnerUserID  uuid.UUID       `json:"owner_user_id"`
	EventType    string          `json:"event_type"`
	Severity     string          `json:"severity"`
	ResourceType string          `json:"resource_type,omitempty"`
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ListParams holds pagination and filtering parameters for audit queries.
type ListParams struct {
	EventType string
	Severity  string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// DefaultListParams returns the first page at the default size.
func DefaultListParams() ListParams {
	return ListParams{Page: 1, PageSize: 20}
}
