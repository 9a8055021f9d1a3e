package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/cbwis-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/cbwis-backend/pkg/redis"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	return true, f.Set(ctx, key, value, ttl)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "fake:" + scope + ":" + id
}

func postWithKey(path, key string, body io.Reader) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, body)
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{path}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestLookupReplayRoute(t *testing.T) {
	tests := []struct {
		method  string
		pattern string
		ttl     time.Duration
		ok      bool
	}{
		{http.MethodPost, "/api/v1/transactions/in", movementReplayTTL, true},
		{http.MethodPost, "/api/v1/transactions/out", movementReplayTTL, true},
		{http.MethodPost, "/api/admin/v1/ledger/reconcile", reconcileReplayTTL, true},
		{http.MethodPost, "/api/v1/inventory", movementReplayTTL, true},
		{http.MethodPost, "/api/v1/inventory/", movementReplayTTL, true},
		{http.MethodPost, "/api/v1/transactions/in/", movementReplayTTL, true},
		{http.MethodPost, "/", 0, false},
		{http.MethodGet, "/api/v1/transactions", 0, false},
		{http.MethodPut, "/api/v1/inventory/{itemId}", 0, false},
	}
	for _, tt := range tests {
		route, ok := lookupReplayRoute(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s %s: expected ok=%v", tt.method, tt.pattern, tt.ok)
		}
		if ok && route.ttl != tt.ttl {
			t.Fatalf("%s %s: expected ttl %v got %v", tt.method, tt.pattern, tt.ttl, route.ttl)
		}
	}
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, postWithKey("/api/v1/transactions/in", "", strings.NewReader(`{"item_id":"x"}`)))
		require.Equal(t, http.StatusCreated, resp.Code)
	}
	require.Equal(t, 2, calls)
	require.Empty(t, store.data)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), postWithKey("/api/v1/transactions/out", "fail", strings.NewReader(`{}`)))
	}
	require.Empty(t, store.data, "5xx responses must not be kept")
	require.Equal(t, 2, calls, "a released key lets the retry through")
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postWithKey("/api/v1/transactions/out", "abc", strings.NewReader(`{"foo":"bar"}`)))
	require.Equal(t, http.StatusAccepted, first.Code)
	for _, ttl := range store.ttls {
		require.Equal(t, movementReplayTTL, ttl)
	}

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, postWithKey("/api/v1/transactions/out", "abc", strings.NewReader(`{"foo":"bar"}`)))
	require.Equal(t, http.StatusAccepted, replay.Code)
	require.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	require.Equal(t, "true", replay.Header().Get(replayedHeader))
	require.JSONEq(t, `{"ok":true}`, replay.Body.String())
	require.Equal(t, 1, calls)
}

func TestIdempotencyTrailingSlashSharesKey(t *testing.T) {
	store := newFakeStore()
	var calls int
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postWithKey("/api/v1/inventory", "create-1", strings.NewReader(`{"name":"Bolt"}`)))
	require.Equal(t, http.StatusCreated, first.Code)

	retry := httptest.NewRecorder()
	handler.ServeHTTP(retry, postWithKey("/api/v1/inventory/", "create-1", strings.NewReader(`{"name":"Bolt"}`)))
	require.Equal(t, http.StatusCreated, retry.Code)
	require.Equal(t, "true", retry.Header().Get(replayedHeader))
	require.Equal(t, 1, calls)
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), postWithKey("/api/v1/transactions/out", "xyz", strings.NewReader(`{"foo":"bar"}`)))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postWithKey("/api/v1/transactions/out", "xyz", strings.NewReader(`{"foo":"diff"}`)))
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, resp))
}

func TestIdempotencyConflictsWhileFirstRequestRuns(t *testing.T) {
	store := newFakeStore()
	var inner http.Handler
	var duplicate *httptest.ResponseRecorder
	var calls int
	inner = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if duplicate == nil {
			// A retry arrives before the first handler has written anything.
			duplicate = httptest.NewRecorder()
			inner.ServeHTTP(duplicate, postWithKey("/api/v1/transactions/in", "dup", strings.NewReader(`{"q":1}`)))
		}
		w.WriteHeader(http.StatusCreated)
	})
	inner = Idempotency(store, nil)(inner)

	first := httptest.NewRecorder()
	inner.ServeHTTP(first, postWithKey("/api/v1/transactions/in", "dup", strings.NewReader(`{"q":1}`)))

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, 1, calls)
	require.Equal(t, http.StatusConflict, duplicate.Code)
	require.Contains(t, duplicate.Body.String(), "in progress")
}

func TestIdempotencyRejectsOversizedBody(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run")
	}))

	resp := httptest.NewRecorder()
	body := strings.NewReader(strings.Repeat("x", maxIdempotentBody+1))
	handler.ServeHTTP(resp, postWithKey("/api/v1/inventory", "big", body))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Empty(t, store.data)
}
