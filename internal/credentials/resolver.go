package credentials

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
)

const cacheTTL = 5 * time.Minute

// Resolver decides which API credential an LLM call uses: the user's
// decrypted personal key when one is stored and readable, the process-wide
// default key otherwise. It never mutates state and never fails. Every
// degraded path falls back to the default key so a corrupted personal key
// cannot block a user's request.
type Resolver struct {
	repo       Repository
	codec      *Codec
	defaultKey string
	cache      *ristretto.Cache[string, string]
}

// NewResolver builds a Resolver. defaultKey may be empty; downstream LLM
// calls will then fail upstream and be reported by the orchestrator.
func NewResolver(repo Repository, codec *Codec, defaultKey string) (*Resolver, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Resolver{
		repo:       repo,
		codec:      codec,
		defaultKey: defaultKey,
		cache:      cache,
	}, nil
}

// ResolveKey returns the credential to use for userID's request, or the
// default key when userID is nil. Safe for concurrent use.
func (r *Resolver) ResolveKey(ctx context.Context, userID *uuid.UUID) string {
	if userID == nil {
		return r.defaultKey
	}

	if key, found := r.cache.Get(userID.String()); found {
		return key
	}

	cred, err := r.repo.Get(ctx, *userID)
	if err != nil {
		slog.Error("resolving credential, falling back to default key", "error", err, "user_id", userID)
		return r.defaultKey
	}

	if cred == nil || !cred.HasKey || cred.Encrypted == "" {
		slog.Debug("no personal key stored, using default key", "user_id", userID)
		return r.defaultKey
	}

	plaintext, ok := r.codec.Decrypt(cred.Encrypted)
	if !ok {
		// Corrupted or unreadable ciphertext degrades silently for the
		// caller; the codec already logged the failure.
		slog.Warn("stored credential undecryptable, using default key", "user_id", userID)
		return r.defaultKey
	}

	r.cache.SetWithTTL(userID.String(), plaintext, 1, cacheTTL)
	return plaintext
}

// UsesPersonalKey reports whether userID has a stored, readable credential.
func (r *Resolver) UsesPersonalKey(ctx context.Context, userID uuid.UUID) bool {
	cred, err := r.repo.Get(ctx, userID)
	if err != nil || cred == nil || !cred.HasKey || cred.Encrypted == "" {
		return false
	}
	_, ok := r.codec.Decrypt(cred.Encrypted)
	return ok
}

// Invalidate drops userID's cached credential. Called after set/delete so
// the next resolution reads fresh state.
func (r *Resolver) Invalidate(userID uuid.UUID) {
	r.cache.Del(userID.String())
}
