package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mailpost/newsletter/internal/auth"
	"github.com/mailpost/newsletter/internal/mailer"
	"github.com/mailpost/newsletter/internal/storage"
)

// RouterConfig carries the dependencies for building the HTTP router.
type RouterConfig struct {
	Queries     storage.Querier
	DB          *storage.DB
	Publish     PublishStore
	Mailer      mailer.Client
	JWTService  *auth.JWTService
	RateLimiter *auth.RateLimiter
	Log         zerolog.Logger
	BaseURL     string
}

// NewRouter creates a chi.Mux with all routes, middleware, and handlers
// configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(RecoverMiddleware(cfg.Log))
	r.Use(MetricsMiddleware)

	// Health and metrics endpoints (no auth required)
	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(cfg.DB))
	r.Handle("/metrics", promhttp.Handler())

	// Public subscription endpoints
	r.Post("/subscriptions", SubscribeHandler(cfg.DB.Pool, cfg.Queries, cfg.Mailer, cfg.BaseURL))
	r.Get("/subscriptions/confirm", ConfirmSubscriptionHandler(cfg.Queries))

	// Operator login
	r.Post("/api/v1/login", LoginHandler(cfg.Queries, cfg.JWTService, cfg.RateLimiter))

	// Admin routes (auth required)
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(auth.BearerAuth(cfg.JWTService))

		r.Post("/newsletters", PublishIssueHandler(cfg.Publish, cfg.Queries))
		r.Get("/issues", ListIssuesHandler(cfg.Queries))
	})

	return r
}
