package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

type memoryIdempotency struct {
	records map[string]pkgredis.IdempotencyRecord
	ttls    map[string]time.Duration
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{
		records: map[string]pkgredis.IdempotencyRecord{},
		ttls:    map[string]time.Duration{},
	}
}

func (m *memoryIdempotency) LoadIdempotency(_ context.Context, scope, key string) (*pkgredis.IdempotencyRecord, error) {
	rec, ok := m.records[pkgredis.IdempotencyKey(scope, key)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memoryIdempotency) SaveIdempotency(_ context.Context, scope, key string, rec pkgredis.IdempotencyRecord, ttl time.Duration) (bool, error) {
	k := pkgredis.IdempotencyKey(scope, key)
	if _, ok := m.records[k]; ok {
		return false, nil
	}
	m.records[k] = rec
	m.ttls[k] = ttl
	return true, nil
}

func post(path, body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	store := newMemoryIdempotency()
	calls := 0
	h := Idempotency(store, nil, OrderIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, post("/api/v1/orders", `{"addressId":"a"}`, ""))
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	require.Equal(t, 2, calls)
	require.Empty(t, store.records)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newMemoryIdempotency()
	calls := 0
	h := Idempotency(store, nil, OrderIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"orderNumber":"ORD-1"}}`))
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, post("/api/v1/orders", `{"addressId":"a"}`, "abc"))
	require.Equal(t, http.StatusCreated, first.Code)

	again := httptest.NewRecorder()
	h.ServeHTTP(again, post("/api/v1/orders", `{"addressId":"a"}`, "abc"))
	require.Equal(t, http.StatusCreated, again.Code)
	require.Equal(t, "application/json", again.Header().Get("Content-Type"))
	require.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
	require.JSONEq(t, `{"data":{"orderNumber":"ORD-1"}}`, again.Body.String())
	require.Equal(t, 1, calls)

	for _, ttl := range store.ttls {
		require.Equal(t, OrderIdempotencyTTL, ttl)
	}
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	store := newMemoryIdempotency()
	h := Idempotency(store, nil, PaymentIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	h.ServeHTTP(httptest.NewRecorder(), post("/api/v1/payments/create-order", `{"orderId":"o"}`, "retry-me"))
	require.Empty(t, store.records)
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	store := newMemoryIdempotency()
	h := Idempotency(store, nil, PaymentIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), post("/api/v1/refunds", `{"reason":"damaged in transit"}`, "xyz"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, post("/api/v1/refunds", `{"reason":"never arrived at all"}`, "xyz"))
	require.Equal(t, http.StatusConflict, rec.Code)

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	h := Idempotency(newMemoryIdempotency(), nil, PaymentIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, post("/api/v1/payments/verify", `{}`, strings.Repeat("k", maxIdempotencyKeyLength+1)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotencyScopesKeysByPath(t *testing.T) {
	store := newMemoryIdempotency()
	h := Idempotency(store, nil, PaymentIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), post("/api/v1/payments/create-order", `{}`, "same"))
	h.ServeHTTP(httptest.NewRecorder(), post("/api/v1/payments/verify", `{}`, "same"))
	require.Len(t, store.records, 2)
}
