package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int64{}}
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func loginRequest(ip, email string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/auth/login", strings.NewReader(`{"email":"`+email+`","password":"secret"}`))
	req.RemoteAddr = ip + ":5678"
	return req
}

func TestRateLimitIPLimit(t *testing.T) {
	limiter := newFakeLimiter()
	handler := RateLimit(NewRateLimitPolicy("login", time.Minute, 2, 0), limiter, nil)(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("1.2.3.4", "a@example.com"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("1.2.3.4", "a@example.com"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("5.6.7.8", "a@example.com"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitEmailLimitKeepsBody(t *testing.T) {
	limiter := newFakeLimiter()
	var bodies []string
	handler := RateLimit(NewRateLimitPolicy("login", time.Minute, 0, 1), limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		bodies = append(bodies, string(body))
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("1.2.3.4", "Blocked@Example.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, bodies, 1)
	require.Contains(t, bodies[0], `"email":"Blocked@Example.com"`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest("9.9.9.9", "blocked@example.com"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := RateLimit(NewRateLimitPolicy("login", 0, 1, 1), newFakeLimiter(), nil)(okHandler())
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest("1.2.3.4", "a@example.com"))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Real-IP", "7.7.7.7")
	require.Equal(t, "7.7.7.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 8.8.8.8, 10.0.0.1")
	require.Equal(t, "8.8.8.8", clientIP(req))
}
