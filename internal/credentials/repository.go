package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoredCredential is the credential-related slice of a users row.
type StoredCredential struct {
	UserID    uuid.UUID
	Encrypted string
	HasKey    bool
	SetAt     *time.Time
}

// Repository reads and writes the credential columns of the users table.
type Repository interface {
	Get(ctx context.Context, userID uuid.UUID) (*StoredCredential, error)
	Set(ctx context.Context, userID uuid.UUID, ciphertext string) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

// Get returns nil (not an error) when the user does not exist.
func (r *postgresRepository) Get(ctx context.Context, userID uuid.UUID) (*StoredCredential, error) {
	query := `SELECT id, COALESCE(api_key_encrypted, ''), has_api_key, api_key_set_at
	          FROM users WHERE id = $1`

	cred := &StoredCredential{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&cred.UserID, &cred.Encrypted, &cred.HasKey, &cred.SetAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying stored credential: %w", err)
	}
	return cred, nil
}

func (r *postgresRepository) Set(ctx context.Context, userID uuid.UUID, ciphertext string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET api_key_encrypted = $2, has_api_key = TRUE, api_key_set_at = now(), updated_at = now()
		 WHERE id = $1`, userID, ciphertext)
	if err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

func (r *postgresRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET api_key_encrypted = NULL, has_api_key = FALSE, api_key_set_at = NULL, updated_at = now()
		 WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clearing credential: %w", err)
	}
	return nil
}
