package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/studyowl-platform/studyowl/internal/events"
	"github.com/studyowl-platform/studyowl/internal/metrics"
)

// Service wraps the ledger repository with metrics and event publishing.
type Service struct {
	repo      Repository
	publisher *events.Publisher
}

// NewService creates a usage Service. publisher may be nil when NATS is
// disabled.
func NewService(repo Repository, publisher *events.Publisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

// LogUsage records one billable LLM call. The ledger row and the counter
// increments commit together or not at all. Daily counters are NOT reset
// here; staleness is handled lazily on read.
func (s *Service) LogUsage(ctx context.Context, rec Record) error {
	if err := s.repo.LogUsage(ctx, rec); err != nil {
		metrics.UsageWritesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("logging usage: %w", err)
	}
	metrics.UsageWritesTotal.WithLabelValues("success").Inc()

	if s.publisher != nil {
		event := events.UsageRecorded{
			UserID:           rec.UserID,
			RequestType:      rec.RequestType,
			Model:            rec.Model,
			PromptTokens:     rec.PromptTokens,
			CompletionTokens: rec.CompletionTokens,
			TotalTokens:      rec.TotalTokens(),
			Cost:             rec.Cost,
			UsedPersonalKey:  rec.UsedPersonalKey,
			Timestamp:        time.Now().UTC(),
		}
		if err := s.publisher.PublishUsageRecorded(ctx, event); err != nil {
			slog.Warn("publishing usage event", "error", err, "user_id", rec.UserID)
		}
	}

	return nil
}

// GetSummary returns the user's usage view, resetting the daily counter
// first when its reset date is older than today.
func (s *Service) GetSummary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	reset, err := s.repo.ResetDailyIfStale(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("checking daily counter: %w", err)
	}
	if reset {
		slog.Debug("daily token counter reset", "user_id", userID)
	}

	summary, err := s.repo.GetSummary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting usage summary: %w", err)
	}
	return summary, nil
}
