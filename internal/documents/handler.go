package documents

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/studyowl-platform/studyowl/internal/api"
	"github.com/studyowl-platform/studyowl/internal/auth"
	"github.com/studyowl-platform/studyowl/internal/credentials"
	"github.com/studyowl-platform/studyowl/internal/events"
)

// Handler handles document HTTP endpoints.
type Handler struct {
	svc       *Service
	resolver  *credentials.Resolver
	publisher *events.Publisher
	validate  *validator.Validate
}

// NewHandler creates a document handler. publisher may be nil.
func NewHandler(svc *Service, resolver *credentials.Resolver, publisher *events.Publisher) *Handler {
	return &Handler{
		svc:       svc,
		resolver:  resolver,
		publisher: publisher,
		validate:  validator.New(),
	}
}

// SearchRequest is a similarity search over the user's documents.
type SearchRequest struct {
	Query     string  `json:"query" validate:"required,min=1,max=2000"`
	Limit     int     `json:"limit" validate:"omitempty,min=1,max=50"`
	Threshold float64 `json:"threshold" validate:"omitempty,min=0,max=1"`
}

// List returns the user's documents, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	page := 1
	pageSize := 20
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	docs, totalCount, err := h.svc.List(r.Context(), userID, page, pageSize)
	if err != nil {
		slog.Error("listing documents", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, docs, totalCount, page, pageSize)
}

// Get returns a single document including its extracted source text.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	docID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	doc, err := h.svc.Get(r.Context(), docID, userID)
	if err != nil {
		slog.Error("fetching document", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if doc == nil {
		api.HandleError(w, api.NewNotFoundError("document not found"))
		return
	}

	api.JSON(w, http.StatusOK, doc)
}

// Delete removes a document.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	docID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.svc.Delete(r.Context(), docID, userID); err != nil {
		api.HandleError(w, api.NewNotFoundError("document not found"))
		return
	}

	if h.publisher != nil {
		event := events.AuditEvent{
			OwnerUserID:  userID,
			EventType:    "document_deleted",
			Severity:     "info",
			ResourceType: "document",
			ResourceID:   docID.String(),
			Timestamp:    time.Now().UTC(),
		}
		if err := h.publisher.PublishAuditEvent(r.Context(), event); err != nil {
			slog.Warn("publishing document audit event", "error", err)
		}
	}

	api.JSONMessage(w, http.StatusOK, "document deleted")
}

// Search runs a similarity search over the user's documents.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}
	if req.Limit == 0 {
		req.Limit = 10
	}
	if req.Threshold == 0 {
		req.Threshold = 0.3
	}

	apiKey := h.resolver.ResolveKey(r.Context(), &userID)
	results, err := h.svc.Search(r.Context(), userID, apiKey, req.Query, req.Limit, req.Threshold)
	if err != nil {
		slog.Error("searching documents", "error", err)
		api.HandleError(w, api.NewBadGatewayError("search is temporarily unavailable"))
		return
	}

	api.JSON(w, http.StatusOK, results)
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
