package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studyowl-platform/studyowl/internal/database"
	"github.com/studyowl-platform/studyowl/internal/events"
	mw "github.com/studyowl-platform/studyowl/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Credential handlers
	GetAPIKey    http.HandlerFunc
	SetAPIKey    http.HandlerFunc
	DeleteAPIKey http.HandlerFunc

	// Usage handler
	GetUsage http.HandlerFunc

	// Study handlers
	AnalyzePDF     http.HandlerFunc
	AnswerQuestion http.HandlerFunc

	// Document handlers
	ListDocuments   http.HandlerFunc
	GetDocument     http.HandlerFunc
	DeleteDocument  http.HandlerFunc
	SearchDocuments http.HandlerFunc

	// Audit handler
	ListAuditLogs http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, eventsClient *events.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe checks DB and the event stream
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if eventsClient != nil && !eventsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if eventsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes are public and optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Route("/user", func(r chi.Router) {
				r.Route("/api-key", func(r chi.Router) {
					r.Get("/", h.GetAPIKey)
					r.Put("/", h.SetAPIKey)
					r.Delete("/", h.DeleteAPIKey)
				})
				r.Get("/usage", h.GetUsage)
			})

			r.Route("/study", func(r chi.Router) {
				r.Post("/analyze", h.AnalyzePDF)
				r.Post("/answer", h.AnswerQuestion)
			})

			r.Route("/documents", func(r chi.Router) {
				r.Get("/", h.ListDocuments)
				r.Post("/search", h.SearchDocuments)
				r.Get("/{documentID}", h.GetDocument)
				r.Delete("/{documentID}", h.DeleteDocument)
			})

			r.Get("/audit", h.ListAuditLogs)
		})
	})

	return r
}
