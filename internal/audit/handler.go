package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/studyowl-platform/studyowl/internal/api"
	"github.com/studyowl-platform/studyowl/internal/auth"
)

// Handler serves audit log queries.
type Handler struct {
	repo *Repository
}

// NewHandler creates an audit Handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// ListAuditLogs returns paginated audit logs for the authenticated user.
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	params := parseListParams(r)
	logs, total, err := h.repo.ListByOwner(r.Context(), userID, params)
	if err != nil {
		slog.Error("listing audit logs", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, logs, total, params.Page, params.PageSize)
}

func parseListParams(r *http.Request) ListParams {
	params := DefaultListParams()
	q := r.URL.Query()

	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			params.Page = n
		}
	}
	if v := q.Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			params.PageSize = n
		}
	}
	params.EventType = q.Get("event_type")
	params.Severity = q.Get("severity")

	if v := q.Get("from"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			params.From = &ts
		}
	}
	if v := q.Get("to"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			params.To = &ts
		}
	}
	return params
}
