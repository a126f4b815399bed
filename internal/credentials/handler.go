package credentials

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/studyowl-platform/studyowl/internal/api"
	"github.com/studyowl-platform/studyowl/internal/auth"
	"github.com/studyowl-platform/studyowl/internal/events"
)

// KeyVerifier performs a live test call against the LLM service to confirm
// a credential is accepted before it is stored. One attempt, no retry.
type KeyVerifier interface {
	VerifyKey(ctx context.Context, apiKey string) error
}

type Handler struct {
	repo      Repository
	codec     *Codec
	resolver  *Resolver
	verifier  KeyVerifier
	publisher *events.Publisher
	validate  *validator.Validate
}

func NewHandler(repo Repository, codec *Codec, resolver *Resolver, verifier KeyVerifier, publisher *events.Publisher) *Handler {
	return &Handler{
		repo:      repo,
		codec:     codec,
		resolver:  resolver,
		verifier:  verifier,
		publisher: publisher,
		validate:  validator.New(),
	}
}

type SetKeyRequest struct {
	APIKey string `json:"api_key" validate:"required,min=20,startswith=sk-"`
}

type KeyInfoResponse struct {
	HasAPIKey bool       `json:"has_api_key"`
	SetAt     *time.Time `json:"api_key_set_at,omitempty"`
	MaskedKey string     `json:"masked_key,omitempty"`
}

// Get returns whether a personal key is stored, when it was set, and a
// masked rendering. The plaintext never leaves the server.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	cred, err := h.repo.Get(r.Context(), userID)
	if err != nil {
		slog.Error("reading stored credential", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if cred == nil {
		api.HandleError(w, api.NewNotFoundError("user not found"))
		return
	}

	resp := KeyInfoResponse{HasAPIKey: cred.HasKey, SetAt: cred.SetAt}
	if cred.HasKey && cred.Encrypted != "" {
		if plaintext, ok := h.codec.Decrypt(cred.Encrypted); ok {
			resp.MaskedKey = Mask(plaintext)
		} else {
			resp.MaskedKey = maskPlaceholder
		}
	}

	api.JSON(w, http.StatusOK, resp)
}

// Set validates the key's format, test-calls the LLM service with it,
// encrypts it, and stores it. No partial state is written on any failure.
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	var req SetKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ErrInvalidAPIKey)
		return
	}

	if err := h.verifier.VerifyKey(r.Context(), req.APIKey); err != nil {
		slog.Info("credential test call failed", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrAPIKeyRejected)
		return
	}

	ciphertext, err := h.codec.Encrypt(req.APIKey)
	if err != nil {
		slog.Error("encrypting credential", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	if err := h.repo.Set(r.Context(), userID, ciphertext); err != nil {
		slog.Error("storing credential", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	h.resolver.Invalidate(userID)
	h.publishEvent(r.Context(), userID, "credential_set")

	api.JSON(w, http.StatusOK, KeyInfoResponse{
		HasAPIKey: true,
		MaskedKey: Mask(req.APIKey),
	})
}

// Delete clears the stored credential. Requests from this user fall back to
// the default key afterwards.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	if err := h.repo.Clear(r.Context(), userID); err != nil {
		slog.Error("clearing credential", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	h.resolver.Invalidate(userID)
	h.publishEvent(r.Context(), userID, "credential_deleted")

	api.JSONMessage(w, http.StatusOK, "API key removed")
}

func (h *Handler) authedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

func (h *Handler) publishEvent(ctx context.Context, userID uuid.UUID, eventType string) {
	if h.publisher == nil {
		return
	}
	event := events.AuditEvent{
		OwnerUserID:  userID,
		EventType:    eventType,
		Severity:     "info",
		ResourceType: "credential",
		ResourceID:   userID.String(),
		Timestamp:    time.Now().UTC(),
	}
	if err := h.publisher.PublishAuditEvent(ctx, event); err != nil {
		slog.Warn("publishing credential audit event", "error", err, "event_type", eventType)
	}
}
