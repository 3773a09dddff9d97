package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/adapter/http/handler"
	"github.com/iho/payrec/internal/adapter/http/middleware"
	"github.com/iho/payrec/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	TransactionHandler   *handler.TransactionHandler
	BeneficiaryHandler   *handler.BeneficiaryHandler
	DebtorAccountHandler *handler.DebtorAccountHandler
	TaskHandler          *handler.TaskHandler
	WebhookHandler       *handler.WebhookHandler
	HealthHandler        *handler.HealthHandler
	IdempotencyStore     usecase.IdempotencyStore
	RateLimiter          *middleware.RateLimiter
	WebhookSecret        string
	Logger               zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recovery)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Bank webhook ingress, authenticated by shared-secret signature.
	// Retried identical deliveries are acknowledged from the idempotency
	// store instead of enqueueing another task.
	signature := middleware.NewSignatureMiddleware(cfg.WebhookSecret, cfg.Logger)
	webhookChain := []func(http.Handler) http.Handler{signature.Wrap}
	if cfg.IdempotencyStore != nil {
		webhookChain = append(webhookChain, middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore).Wrap)
	}
	r.With(webhookChain...).Post("/webhooks/bank", cfg.WebhookHandler.HandleBankEvent)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Transactions
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", cfg.TransactionHandler.List)
			r.Get("/{id}", cfg.TransactionHandler.Get)
		})

		// Beneficiaries
		r.Get("/beneficiaries", cfg.BeneficiaryHandler.List)

		// Debtor accounts
		r.Get("/debtor-accounts/{ownerID}", cfg.DebtorAccountHandler.Get)

		// Task queue introspection
		r.Get("/tasks/stats", cfg.TaskHandler.Stats)
	})

	return r
}
