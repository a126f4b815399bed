package usage

import (
	"time"

	"github.com/google/uuid"
)

// Request types recorded in the ledger.
const (
	RequestTypeAnalyze = "analyze"
	RequestTypeAnswer  = "answer"
)

// API endpoints recorded alongside the request type.
const (
	EndpointAnalyze = "/api/v1/study/analyze"
	EndpointAnswer  = "/api/v1/study/answer"
)

// Record is one billable LLM call to be written to the ledger.
type Record struct {
	UserID           uuid.UUID
	Endpoint         string
	RequestType      string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	UsedPersonalKey  bool
}

// TotalTokens is the sum of prompt and completion tokens.
func (r Record) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// LogEntry is a persisted ledger row.
type LogEntry struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Endpoint         string    `json:"endpoint"`
	RequestType      string    `json:"request_type"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Cost             float64   `json:"cost"`
	UsedPersonalKey  bool      `json:"used_personal_key"`
	CreatedAt        time.Time `json:"created_at"`
}

// Summary is a user's aggregate view of the ledger: lifetime totals from the
// user row plus the most recent individual entries.
type Summary struct {
	TotalPromptTokens     int64      `json:"total_prompt_tokens"`
	TotalCompletionTokens int64      `json:"total_completion_tokens"`
	TotalTokens           int64      `json:"total_tokens"`
	TotalCost             float64    `json:"total_cost"`
	DailyTokens           int64      `json:"daily_tokens"`
	DailyTokensResetAt    *time.Time `json:"daily_tokens_reset_at,omitempty"`
	RecentEntries         []LogEntry `json:"recent_entries"`
}
