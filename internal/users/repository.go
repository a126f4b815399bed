package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// userColumns is every column the scan helper reads, in scan order. The
// aggregate counters live on the users row itself, so a single lookup serves
// both authentication and usage display.
const userColumns = `id, email, password_hash,
	has_api_key, api_key_set_at,
	total_prompt_tokens, total_completion_tokens, total_tokens, total_cost,
	daily_tokens, daily_tokens_reset_at,
	created_at, updated_at`

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, user *User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, daily_tokens_reset_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.PasswordHash, user.DailyTokensResetAt, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getWhere(ctx, "id = $1", id)
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getWhere(ctx, "email = $1", email)
}

func (r *postgresRepository) getWhere(ctx context.Context, cond string, arg any) (*User, error) {
	user := &User{}
	err := r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+cond, arg,
	).Scan(
		&user.ID, &user.Email, &user.PasswordHash,
		&user.HasAPIKey, &user.APIKeySetAt,
		&user.TotalPromptTokens, &user.TotalCompletionTokens, &user.TotalTokens, &user.TotalCost,
		&user.DailyTokens, &user.DailyTokensResetAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return exists, nil
}
