package documents

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Embedder turns query text into a vector for similarity search. The API
// key is resolved by the caller since it may be a personal key.
type Embedder interface {
	Embed(ctx context.Context, apiKey, text string) ([]float32, error)
}

// Service provides document business logic.
type Service struct {
	repo     Repository
	embedder Embedder
}

// NewService creates a document Service.
func NewService(repo Repository, embedder Embedder) *Service {
	return &Service{repo: repo, embedder: embedder}
}

// Create persists a processed document.
func (s *Service) Create(ctx context.Context, doc *Document) error {
	if err := s.repo.Create(ctx, doc); err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	return nil
}

// Get returns one of the user's documents, or nil if absent.
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*Document, error) {
	return s.repo.GetByID(ctx, id, userID)
}

// Latest returns the user's most recent document, or nil if they have none.
func (s *Service) Latest(ctx context.Context, userID uuid.UUID) (*Document, error) {
	return s.repo.Latest(ctx, userID)
}

// List returns a page of the user's documents and the total count.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Document, int64, error) {
	docs, err := s.repo.List(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("listing documents: %w", err)
	}
	count, err := s.repo.Count(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("counting documents: %w", err)
	}
	return docs, count, nil
}

// Delete removes one of the user's documents.
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.Delete(ctx, id, userID)
}

// Search embeds the query under apiKey and returns the user's most similar
// documents.
func (s *Service) Search(ctx context.Context, userID uuid.UUID, apiKey, query string, limit int, threshold float64) ([]SearchResult, error) {
	embedding, err := s.embedder.Embed(ctx, apiKey, query)
	if err != nil {
		return nil, fmt.Errorf("embedding search query: %w", err)
	}
	results, err := s.repo.SearchSimilar(ctx, userID, embedding, limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	return results, nil
}
