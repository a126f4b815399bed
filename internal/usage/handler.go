package usage

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/studyowl-platform/studyowl/internal/api"
	"github.com/studyowl-platform/studyowl/internal/auth"
)

// Handler serves the usage summary endpoint.
type Handler struct {
	service *Service
}

// NewHandler creates a usage Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetUsage returns the authenticated user's lifetime totals, daily counter,
// and recent ledger entries.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
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

	summary, err := h.service.GetSummary(r.Context(), userID)
	if err != nil {
		slog.Error("getting usage summary", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if summary == nil {
		api.HandleError(w, api.NewNotFoundError("user not found"))
		return
	}

	api.JSON(w, http.StatusOK, summary)
}
