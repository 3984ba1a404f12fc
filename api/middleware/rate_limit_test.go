package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/luxeaccount/luxeaccount-backend/pkg/auth"
)

type fakeRateLimitStore struct {
	counts map[string]int64
	err    error
}

func newFakeRateLimitStore() *fakeRateLimitStore {
	return &fakeRateLimitStore{counts: map[string]int64{}}
}

func (f *fakeRateLimitStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRateLimitStore) RateLimitKey(scope string) string {
	return "luxe:rate_limit:" + scope
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_BlocksIPOverLimit(t *testing.T) {
	store := newFakeRateLimitStore()
	policy := NewRateLimitPolicy("checkout", time.Minute, 2, 0)
	handler := RateLimit(policy, store, nil)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/create-checkout-session", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/payments/create-checkout-session", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// a different address starts its own window
	other := httptest.NewRequest(http.MethodPost, "/api/payments/create-checkout-session", nil)
	other.Header.Set("X-Forwarded-For", "198.51.100.7")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, other)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_BlocksPrincipalOverLimit(t *testing.T) {
	store := newFakeRateLimitStore()
	policy := NewRateLimitPolicy("checkout", time.Minute, 0, 1)
	handler := RateLimit(policy, store, nil)(okHandler())

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/create-checkout-session", nil)
		req = req.WithContext(WithPrincipal(req.Context(), auth.Principal{ID: "user-1"}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestRateLimit_DisabledPolicyPassesThrough(t *testing.T) {
	store := newFakeRateLimitStore()
	handler := RateLimit(NewRateLimitPolicy("checkout", 0, 10, 10), store, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/payments/create-checkout-session", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, store.counts)
}

func TestRateLimit_StoreErrorReportsDependency(t *testing.T) {
	store := newFakeRateLimitStore()
	store.err = assert.AnError
	policy := NewRateLimitPolicy("checkout", time.Minute, 1, 0)
	handler := RateLimit(policy, store, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/payments/create-checkout-session", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}
