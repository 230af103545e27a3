package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/agrilink/pkg/httpx"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(t *testing.T, h http.Handler, remoteAddr string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range hdr {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	cfg := httpx.RateLimitConfig{
		RequestsPerWindow: 3,
		Window:            time.Minute,
		Burst:             3,
	}
	h := httpx.RateLimitByIP(cfg)(okHandler())

	for i := range 3 {
		rec := doRequest(t, h, "10.0.0.1:1234", nil)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	cfg := httpx.RateLimitConfig{
		RequestsPerWindow: 2,
		Window:            time.Minute,
		Burst:             2,
	}
	h := httpx.RateLimitByIP(cfg)(okHandler())

	doRequest(t, h, "10.0.0.2:1234", nil)
	doRequest(t, h, "10.0.0.2:1234", nil)
	rec := doRequest(t, h, "10.0.0.2:1234", nil)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.JSONEq(t,
		`{"error":"rate_limit_exceeded","status":429,"message":"Too many requests. Please try again later."}`,
		rec.Body.String())
}

func TestRateLimitIsolatesKeys(t *testing.T) {
	cfg := httpx.RateLimitConfig{
		RequestsPerWindow: 1,
		Window:            time.Minute,
		Burst:             1,
	}
	h := httpx.RateLimitByIP(cfg)(okHandler())

	// Exhaust the budget for the first address.
	doRequest(t, h, "10.0.0.3:1234", nil)
	rec := doRequest(t, h, "10.0.0.3:1234", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different address has its own bucket.
	rec = doRequest(t, h, "10.0.0.4:1234", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIPKeyExtractorPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "x-forwarded-for wins",
			remoteAddr: "10.0.0.1:1234",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.7, 10.0.0.1",
				"X-Real-IP":       "198.51.100.9",
			},
			want: "203.0.113.7",
		},
		{
			name:       "x-real-ip next",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "198.51.100.9",
		},
		{
			name:       "remote addr fallback",
			remoteAddr: "10.0.0.1:1234",
			want:       "10.0.0.1",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "10.0.0.1",
			want:       "10.0.0.1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, httpx.IPKeyExtractor(req))
		})
	}
}

func TestUserIDKeyExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, httpx.UserIDKeyExtractor(req))

	ctx := context.WithValue(req.Context(), httpx.CtxKeyUserID, "01HZXC5SM0QWERTYUIOPASDFGH")
	req = req.WithContext(ctx)
	assert.Equal(t, "01HZXC5SM0QWERTYUIOPASDFGH", httpx.UserIDKeyExtractor(req))
}

func TestCompositeKeyExtractorSkipsEmptyParts(t *testing.T) {
	ex := httpx.CompositeKeyExtractor(":",
		httpx.UserIDKeyExtractor,
		httpx.IPKeyExtractor,
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"

	// No user in context, only the IP contributes.
	assert.Equal(t, "10.0.0.5", ex(req))

	ctx := context.WithValue(req.Context(), httpx.CtxKeyUserID, "user123")
	req = req.WithContext(ctx)
	assert.Equal(t, "user123:10.0.0.5", ex(req))
}

func TestRateLimitByUserFallsBackToIP(t *testing.T) {
	cfg := httpx.RateLimitConfig{
		RequestsPerWindow: 1,
		Window:            time.Minute,
		Burst:             1,
	}
	h := httpx.RateLimitByUser(cfg)(okHandler())

	rec := doRequest(t, h, "10.0.0.6:1234", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, "10.0.0.6:1234", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestParseRateLimitFromEnvOverrides(t *testing.T) {
	t.Setenv("RATELIMIT_TEST_REQUESTS", "42")
	t.Setenv("RATELIMIT_TEST_WINDOW_SEC", "30")
	t.Setenv("RATELIMIT_TEST_BURST", "7")

	got := httpx.ParseRateLimitFromEnv("TEST", httpx.RateLimitConfig{
		RequestsPerWindow: 5,
		Window:            time.Minute,
		Burst:             5,
	})

	assert.Equal(t, 42, got.RequestsPerWindow)
	assert.Equal(t, 30*time.Second, got.Window)
	assert.Equal(t, 7, got.Burst)
}

func TestParseRateLimitFromEnvIgnoresInvalid(t *testing.T) {
	t.Setenv("RATELIMIT_TEST_REQUESTS", "not-a-number")
	t.Setenv("RATELIMIT_TEST_BURST", "-1")

	def := httpx.RateLimitConfig{
		RequestsPerWindow: 5,
		Window:            time.Minute,
		Burst:             5,
	}
	got := httpx.ParseRateLimitFromEnv("TEST", def)
	assert.Equal(t, def, got)
}
