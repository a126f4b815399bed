package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the envelope for every non-paginated body. Exactly one of the
// fields is set per response.
type Response struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PaginatedResponse wraps list endpoints.
type PaginatedResponse struct {
	Data       any   `json:"data"`
	TotalCount int64 `json:"total_count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
}

// JSON writes data inside the standard envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Data: data})
}

// JSONMessage writes an informational message with no data payload.
func JSONMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Message: message})
}

// JSONPaginated writes a page of results with its total count.
func JSONPaginated(w http.ResponseWriter, status int, data any, totalCount int64, page, pageSize int) {
	writeJSON(w, status, PaginatedResponse{
		Data:       data,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	})
}

// JSONError writes an error body from err's message.
func JSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, Response{Error: err.Error()})
}

// JSONErrorMessage writes an error body with a literal message.
func JSONErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encoding response body", "error", err)
	}
}
