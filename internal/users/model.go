package users

import (
	"time"

	"github.com/google/uuid"
)

// User matches the users table. Usage counters are all-time aggregates kept
// consistent with the usage_logs table by the usage ledger's transactional
// writes; DailyTokens is reset lazily once per calendar day.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`

	HasAPIKey   bool       `json:"has_api_key"`
	APIKeySetAt *time.Time `json:"api_key_set_at,omitempty"`

	TotalPromptTokens     int64   `json:"total_prompt_tokens"`
	TotalCompletionTokens int64   `json:"total_completion_tokens"`
	TotalTokens           int64   `json:"total_tokens"`
	TotalCost             float64 `json:"total_cost"`
	DailyTokens           int64   `json:"daily_tokens"`
	DailyTokensResetAt    time.Time `json:"daily_tokens_reset_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
