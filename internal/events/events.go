package events

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamEvents holds all StudyOwl domain events.
const StreamEvents = "STUDYOWL_EVENTS"

// Subject constants.
const (
	SubjectAuditEvent    = "studyowl.events.audit"
	SubjectUsageRecorded = "studyowl.events.usage"
)

// AuditEvent is published for security-relevant actions such as credential
// changes and document deletions.
type AuditEvent struct {
	OwnerUserID  uuid.UUID `json:"owner_user_id"`
	EventType    string    `json:"event_type"`
	Severity     string    `json:"severity"` // info, warn, error
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Details      string    `json:"details"`
	Timestamp    time.Time `json:"timestamp"`
}

// UsageRecorded is published after a ledger write commits.
type UsageRecorded struct {
	UserID           uuid.UUID `json:"user_id"`
	RequestType      string    `json:"request_type"` // analyze, answer
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Cost             float64   `json:"cost"`
	UsedPersonalKey  bool      `json:"used_personal_key"`
	Timestamp        time.Time `json:"timestamp"`
}
