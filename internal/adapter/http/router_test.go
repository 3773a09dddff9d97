package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/adapter/http/handler"
	apimiddleware "github.com/iho/payrec/internal/adapter/http/middleware"
	"github.com/iho/payrec/internal/usecase"
	"github.com/iho/payrec/internal/usecase/mocks"
)

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestNewRouter_WebhookRejectsUnsignedDelivery(t *testing.T) {
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.WebhookSecret = "topsecret"
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank", strings.NewReader(`{"data":{"id":"bt-1"}}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected unsigned webhook to be rejected, got %d", rec.Code)
	}
}

func TestNewRouter_IdempotencyMiddlewareInvokesStore(t *testing.T) {
	store := &stubIdempotencyStore{}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if !store.checkCalled {
		t.Fatalf("expected idempotency store to be used")
	}
}

func TestNewRouter_WebhookDuplicateDeliveryReplayedWithoutReprocessing(t *testing.T) {
	store := &stubIdempotencyStore{}
	scheduler := mocks.NewMockTaskScheduler()
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
		cfg.WebhookHandler = handler.NewWebhookHandler(scheduler, zerolog.Nop())
	}))

	body := `{"event":"transaction.stateChanged","data":{"id":"bt-1"}}`

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/webhooks/bank", strings.NewReader(body)))
	if first.Code != http.StatusOK {
		t.Fatalf("first delivery returned %d", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/webhooks/bank", strings.NewReader(body)))
	if second.Code != http.StatusOK {
		t.Fatalf("retried delivery returned %d", second.Code)
	}

	if second.Header().Get("X-Idempotency-Replay") != "true" {
		t.Error("retried delivery was not served from the idempotency store")
	}

	if len(scheduler.Tasks) != 1 {
		t.Errorf("scheduled %d tasks for one logical delivery, want 1", len(scheduler.Tasks))
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig())

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"POST /webhooks/bank",
		"GET /api/v1/transactions/",
		"GET /api/v1/transactions/{id}",
		"GET /api/v1/beneficiaries",
		"GET /api/v1/debtor-accounts/{ownerID}",
		"GET /api/v1/tasks/stats",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	logger := zerolog.Nop()
	guard := usecase.NewIdempotencyGuard(mocks.NewMockIdempotencyRepository())

	transactionUC := usecase.NewTransactionUseCase(
		mocks.NewMockTransactionManager(),
		mocks.NewMockTransactionRepository(),
		guard,
		mocks.NewMockIDGenerator(),
		logger,
	)
	beneficiaryUC := usecase.NewBeneficiaryUseCase(
		mocks.NewMockTransactionManager(),
		mocks.NewMockBeneficiaryRepository(),
		mocks.NewMockDebtorAccountRepository(),
		mocks.NewMockBankClient(),
		mocks.NewMockIDGenerator(),
		logger,
	)
	debtorUC := usecase.NewDebtorAccountUseCase(
		mocks.NewMockTransactionManager(),
		mocks.NewMockDebtorAccountRepository(),
		guard,
		logger,
	)

	cfg := RouterConfig{
		TransactionHandler:   handler.NewTransactionHandler(transactionUC),
		BeneficiaryHandler:   handler.NewBeneficiaryHandler(beneficiaryUC),
		DebtorAccountHandler: handler.NewDebtorAccountHandler(debtorUC),
		TaskHandler:          handler.NewTaskHandler(nil),
		WebhookHandler:       handler.NewWebhookHandler(mocks.NewMockTaskScheduler(), logger),
		HealthHandler:        &handler.HealthHandler{},
		Logger:               logger,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type stubIdempotencyStore struct {
	checkCalled bool
	responses   map[string][]byte
}

func (s *stubIdempotencyStore) CheckAndSet(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error) {
	s.checkCalled = true
	if resp, ok := s.responses[key]; ok {
		return true, resp, nil
	}
	return false, nil, nil
}

func (s *stubIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if s.responses == nil {
		s.responses = make(map[string][]byte)
	}
	s.responses[key] = append([]byte(nil), response...)
	return nil
}
