package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document is a processed study document: the extracted source text, the
// generated summary, and the summary's embedding for similarity search.
type Document struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	SourceText string    `json:"source_text,omitempty"`
	Model      string    `json:"model"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// SearchResult pairs a document with its cosine similarity to the query.
type SearchResult struct {
	Document   Document `json:"document"`
	Similarity float64  `json:"similarity"`
}
