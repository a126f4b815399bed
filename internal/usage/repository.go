package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// recentEntriesLimit bounds how many individual ledger rows a summary returns.
const recentEntriesLimit = 20

// Repository persists ledger rows and the per-user aggregate counters.
type Repository interface {
	// LogUsage writes one ledger row and increments the user's aggregate
	// counters in a single transaction. Either both happen or neither does.
	LogUsage(ctx context.Context, rec Record) error

	// ResetDailyIfStale zeroes the daily counter when its reset timestamp
	// falls on an earlier calendar date than today. Returns true when a
	// reset was performed.
	ResetDailyIfStale(ctx context.Context, userID uuid.UUID) (bool, error)

	// GetSummary returns the user's aggregate counters and recent entries,
	// or nil when the user does not exist.
	GetSummary(ctx context.Context, userID uuid.UUID) (*Summary, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed usage repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

// ErrUnknownUser is returned when a ledger write targets a user row that
// does not exist. The whole transaction rolls back.
var ErrUnknownUser = errors.New("usage: unknown user")

func (r *postgresRepository) LogUsage(ctx context.Context, rec Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning ledger transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO usage_logs (id, user_id, endpoint, request_type, model,
		        prompt_tokens, completion_tokens, total_tokens, cost,
		        used_personal_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		uuid.New(), rec.UserID, rec.Endpoint, rec.RequestType, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens(), rec.Cost,
		rec.UsedPersonalKey)
	if err != nil {
		return fmt.Errorf("inserting ledger row: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE users
		 SET total_prompt_tokens = total_prompt_tokens + $2,
		     total_completion_tokens = total_completion_tokens + $3,
		     total_tokens = total_tokens + $4,
		     total_cost = total_cost + $5,
		     daily_tokens = daily_tokens + $4,
		     updated_at = NOW()
		 WHERE id = $1`,
		rec.UserID, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens(), rec.Cost)
	if err != nil {
		return fmt.Errorf("incrementing usage counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownUser
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing ledger transaction: %w", err)
	}
	return nil
}

func (r *postgresRepository) ResetDailyIfStale(ctx context.Context, userID uuid.UUID) (bool, error) {
	// Calendar-date comparison, not a rolling 24h window. A counter last
	// reset at 23:59 is stale one minute later.
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET daily_tokens = 0,
		     daily_tokens_reset_at = NOW(),
		     updated_at = NOW()
		 WHERE id = $1
		   AND (daily_tokens_reset_at IS NULL
		        OR daily_tokens_reset_at::date < NOW()::date)`, userID)
	if err != nil {
		return false, fmt.Errorf("resetting daily counter: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *postgresRepository) GetSummary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx,
		`SELECT total_prompt_tokens, total_completion_tokens, total_tokens,
		        total_cost, daily_tokens, daily_tokens_reset_at
		 FROM users WHERE id = $1`, userID,
	).Scan(&s.TotalPromptTokens, &s.TotalCompletionTokens, &s.TotalTokens,
		&s.TotalCost, &s.DailyTokens, &s.DailyTokensResetAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching usage summary: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, endpoint, request_type, model, prompt_tokens,
		        completion_tokens, total_tokens, cost, used_personal_key, created_at
		 FROM usage_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, userID, recentEntriesLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching recent ledger entries: %w", err)
	}
	defer rows.Close()

	s.RecentEntries = make([]LogEntry, 0, recentEntriesLimit)
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Endpoint, &e.RequestType, &e.Model,
			&e.PromptTokens, &e.CompletionTokens, &e.TotalTokens, &e.Cost,
			&e.UsedPersonalKey, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		s.RecentEntries = append(s.RecentEntries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger entries: %w", err)
	}

	return &s, nil
}
