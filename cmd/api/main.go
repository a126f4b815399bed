package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/studyowl-platform/studyowl/internal/api"
	"github.com/studyowl-platform/studyowl/internal/audit"
	"github.com/studyowl-platform/studyowl/internal/auth"
	"github.com/studyowl-platform/studyowl/internal/config"
	"github.com/studyowl-platform/studyowl/internal/credentials"
	"github.com/studyowl-platform/studyowl/internal/database"
	"github.com/studyowl-platform/studyowl/internal/documents"
	"github.com/studyowl-platform/studyowl/internal/events"
	"github.com/studyowl-platform/studyowl/internal/llm"
	mw "github.com/studyowl-platform/studyowl/internal/middleware"
	iredis "github.com/studyowl-platform/studyowl/internal/redis"
	"github.com/studyowl-platform/studyowl/internal/server"
	"github.com/studyowl-platform/studyowl/internal/study"
	"github.com/studyowl-platform/studyowl/internal/usage"
	"github.com/studyowl-platform/studyowl/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := database.RunMigrations(cfg.DB.DSN(), migrationsPath); err != nil {
		slog.Error("migrating database", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is optional; the API degrades to no event publishing without it.
	var eventsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATS.Enabled {
		eventsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer eventsClient.Close()
		publisher = events.NewPublisher(eventsClient.JetStream())
	}

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// LLM client
	llmClient := llm.NewClient(cfg.OpenAI)

	// Credentials
	codec, err := credentials.NewCodec(cfg.Encryption.Secret)
	if err != nil {
		slog.Error("initializing credential codec", "error", err)
		os.Exit(1)
	}
	credRepo := credentials.NewRepository(pool)
	resolver, err := credentials.NewResolver(credRepo, codec, cfg.OpenAI.APIKey)
	if err != nil {
		slog.Error("initializing credential resolver", "error", err)
		os.Exit(1)
	}
	credHandler := credentials.NewHandler(credRepo, codec, resolver, llmClient, publisher)

	// Usage ledger
	usageRepo := usage.NewRepository(pool)
	usageSvc := usage.NewService(usageRepo, publisher)
	usageHandler := usage.NewHandler(usageSvc)

	// Documents
	docRepo := documents.NewPostgresRepository(pool)
	docSvc := documents.NewService(docRepo, searchEmbedder{client: llmClient})
	docHandler := documents.NewHandler(docSvc, resolver, publisher)

	// Study orchestrators
	extractor := study.NewHTTPExtractor(cfg.Extractor)
	studySvc := study.NewService(resolver, llmClient, docSvc, usageSvc, extractor)
	studyHandler := study.NewHandler(studySvc)

	// Audit
	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo)

	if eventsClient != nil {
		consumerMgr := events.NewConsumerManager(eventsClient.JetStream())
		auditConsumer := audit.NewConsumer(auditRepo, consumerMgr)
		go func() {
			if err := auditConsumer.Start(ctx); err != nil {
				slog.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	// Rate limiting on auth endpoints
	rateLimiter := mw.NewRateLimiter(redisClient, cfg.RateLimit.AuthMaxRequests, cfg.RateLimit.AuthWindowSec)

	// Router
	router := api.NewRouter(pool, eventsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthRateLimiter:    rateLimiter.Middleware,
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		GetAPIKey:    credHandler.Get,
		SetAPIKey:    credHandler.Set,
		DeleteAPIKey: credHandler.Delete,

		GetUsage: usageHandler.GetUsage,

		AnalyzePDF:     studyHandler.AnalyzePDF,
		AnswerQuestion: studyHandler.AnswerQuestion,

		ListDocuments:   docHandler.List,
		GetDocument:     docHandler.Get,
		DeleteDocument:  docHandler.Delete,
		SearchDocuments: docHandler.Search,

		ListAuditLogs: auditHandler.ListAuditLogs,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// searchEmbedder narrows the LLM client to the document search interface.
type searchEmbedder struct {
	client *llm.Client
}

func (e searchEmbedder) Embed(ctx context.Context, apiKey, text string) ([]float32, error) {
	vec, _, err := e.client.Embed(ctx, apiKey, text)
	return vec, err
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
