package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/payrec/internal/adapter/http/middleware"
	"github.com/iho/payrec/internal/usecase/mocks"
)

func TestIdempotencyMiddleware_FirstRequestPassesThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)

	store.EXPECT().
		CheckAndSet(gomock.Any(), "key-1", 24*time.Hour).
		Return(false, nil, nil)
	store.EXPECT().
		Update(gomock.Any(), "key-1", []byte(`{"id":"tx-1"}`), 24*time.Hour).
		Return(nil)

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"tx-1"}`))
	})

	mw := middleware.NewIdempotencyMiddleware(store)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader("{}"))
	req.Header.Set(middleware.IdempotencyKeyHeader, "key-1")

	mw.Wrap(handler).ServeHTTP(rec, req)

	assert.True(t, handlerCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Idempotency-Replay"))
}

func TestIdempotencyMiddleware_ReplaysCachedResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)

	cached := []byte(`{"id":"tx-1"}`)
	store.EXPECT().
		CheckAndSet(gomock.Any(), "key-1", gomock.Any()).
		Return(true, cached, nil)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on replay")
	})

	mw := middleware.NewIdempotencyMiddleware(store)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader("{}"))
	req.Header.Set(middleware.IdempotencyKeyHeader, "key-1")

	mw.Wrap(handler).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Idempotency-Replay"))
	assert.JSONEq(t, string(cached), rec.Body.String())
}

func TestIdempotencyMiddleware_KeylessBodyFallsBackToDigest(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)

	var firstKey string
	store.EXPECT().
		CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, key string, _ time.Duration) (bool, []byte, error) {
			firstKey = key
			return false, nil, nil
		})
	store.EXPECT().
		Update(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)

	var seenBody string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, 64)
		n, _ := r.Body.Read(body)
		seenBody = string(body[:n])
		w.Write([]byte(`{"status":"accepted"}`))
	})

	mw := middleware.NewIdempotencyMiddleware(store)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank", strings.NewReader(`{"data":{"id":"bt-1"}}`))

	mw.Wrap(handler).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(firstKey, "body:"), "key %q is not a body digest", firstKey)
	// The digested body must be restored for the handler.
	assert.Equal(t, `{"data":{"id":"bt-1"}}`, seenBody)

	// An identical retried delivery derives the same key and replays.
	store.EXPECT().
		CheckAndSet(gomock.Any(), firstKey, gomock.Any()).
		Return(true, []byte(`{"status":"accepted"}`), nil)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhooks/bank", strings.NewReader(`{"data":{"id":"bt-1"}}`))
	mw.Wrap(handler).ServeHTTP(rec, req)

	assert.Equal(t, "true", rec.Header().Get("X-Idempotency-Replay"))
}

func TestIdempotencyMiddleware_SkipsReadsAndEmptyBodies(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)
	// No expectations: the store must never be touched.

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mw := middleware.NewIdempotencyMiddleware(store)

	rec := httptest.NewRecorder()
	mw.Wrap(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	mw.Wrap(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transactions", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIdempotencyMiddleware_ErrorResponsesNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)

	store.EXPECT().
		CheckAndSet(gomock.Any(), "key-1", gomock.Any()).
		Return(false, nil, nil)
	// No Update expectation: 4xx must not be stored.

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	mw := middleware.NewIdempotencyMiddleware(store)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader("{}"))
	req.Header.Set(middleware.IdempotencyKeyHeader, "key-1")

	mw.Wrap(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
