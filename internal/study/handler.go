package study

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/studyowl-platform/studyowl/internal/api"
	"github.com/studyowl-platform/studyowl/internal/auth"
)

const (
	maxPDFBytes   = 25 << 20 // 25 MiB
	maxImageBytes = 10 << 20 // 10 MiB
)

// Handler handles the two study endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a study Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// AnalyzePDF accepts a multipart PDF upload and returns its summary.
func (h *Handler) AnalyzePDF(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPDFBytes)
	if err := r.ParseMultipartForm(maxPDFBytes); err != nil {
		api.HandleError(w, api.NewBadRequestError("upload too large or malformed"))
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("missing pdf field"))
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		api.HandleError(w, api.NewBadRequestError("only PDF files are accepted"))
		return
	}

	pdf, err := io.ReadAll(file)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("reading uploaded file failed"))
		return
	}

	result, err := h.svc.AnalyzePDF(r.Context(), userID, header.Filename, pdf)
	if err != nil {
		slog.Error("analyzing PDF", "error", err, "user_id", userID)
		api.HandleError(w, api.NewBadGatewayError("document analysis failed"))
		return
	}

	api.JSON(w, http.StatusOK, result)
}

// AnswerQuestion accepts a photographed question and returns an answer
// grounded in a stored summary.
func (h *Handler) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		api.HandleError(w, api.NewBadRequestError("upload too large or malformed"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("missing image field"))
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		api.HandleError(w, api.NewBadRequestError("only image files are accepted"))
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("reading uploaded image failed"))
		return
	}

	req := AnswerRequest{
		Image:    image,
		MimeType: mimeType,
		Question: r.FormValue("question"),
		Analysis: r.FormValue("analysis"),
	}
	// Inline analysis text takes the place of a stored document.
	if req.Analysis == "" {
		if raw := r.FormValue("document_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				api.HandleError(w, api.NewBadRequestError("invalid document_id"))
				return
			}
			req.DocumentID = &id
		}
	}

	result, err := h.svc.AnswerQuestion(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoDocument):
			api.HandleError(w, api.NewBadRequestError("analyze a document before asking questions"))
		case errors.Is(err, ErrDocumentNotFound):
			api.HandleError(w, api.NewNotFoundError("document not found"))
		default:
			slog.Error("answering question", "error", err, "user_id", userID)
			api.HandleError(w, api.NewBadGatewayError("question answering failed"))
		}
		return
	}

	api.JSON(w, http.StatusOK, result)
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
