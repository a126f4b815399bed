package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Repository defines document persistence operations. All reads and writes
// are scoped to the owning user.
type Repository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*Document, error)
	List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Document, error)
	Count(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	SearchSimilar(ctx context.Context, userID uuid.UUID, embedding []float32, limit int, threshold float64) ([]SearchResult, error)
	Latest(ctx context.Context, userID uuid.UUID) (*Document, error)
}

// PostgresRepository implements Repository using pgx + pgvector.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new document repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	if len(doc.Embedding) > 0 {
		vec := pgvector.NewVector(doc.Embedding)
		_, err := r.pool.Exec(ctx,
			`INSERT INTO documents (id, user_id, title, summary, source_text, model, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			doc.ID, doc.UserID, doc.Title, doc.Summary, doc.SourceText, doc.Model, vec,
		)
		if err != nil {
			return fmt.Errorf("inserting document with embedding: %w", err)
		}
	} else {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO documents (id, user_id, title, summary, source_text, model)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			doc.ID, doc.UserID, doc.Title, doc.Summary, doc.SourceText, doc.Model,
		)
		if err != nil {
			return fmt.Errorf("inserting document: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*Document, error) {
	var d Document
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, title, summary, source_text, model, created_at
		 FROM documents WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&d.ID, &d.UserID, &d.Title, &d.Summary, &d.SourceText, &d.Model, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching document: %w", err)
	}
	return &d, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Document, error) {
	offset := (page - 1) * pageSize
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, summary, model, created_at
		 FROM documents
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, userID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.Summary, &d.Model, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepository) Count(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document not found")
	}
	return nil
}

func (r *PostgresRepository) SearchSimilar(ctx context.Context, userID uuid.UUID, embedding []float32, limit int, threshold float64) ([]SearchResult, error) {
	vec := pgvector.NewVector(embedding)
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, summary, model, created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM documents
		 WHERE user_id = $2
		   AND embedding IS NOT NULL
		   AND 1 - (embedding <=> $1) >= $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, userID, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching similar documents: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var d Document
		var similarity float64
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.Summary, &d.Model, &d.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, SearchResult{Document: d, Similarity: similarity})
	}
	return results, rows.Err()
}

// Latest returns the user's most recently created document, or nil when the
// user has none. Answering uses it when no document is named explicitly.
func (r *PostgresRepository) Latest(ctx context.Context, userID uuid.UUID) (*Document, error) {
	var d Document
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, title, summary, source_text, model, created_at
		 FROM documents
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`, userID,
	).Scan(&d.ID, &d.UserID, &d.Title, &d.Summary, &d.SourceText, &d.Model, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching latest document: %w", err)
	}
	return &d, nil
}
