package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/af-corp/mlapi/internal/config"
	"github.com/af-corp/mlapi/internal/httputil"
	"github.com/af-corp/mlapi/internal/telemetry"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func staticCfg(rl config.RateLimitConfig) func() config.RateLimitConfig {
	return func() config.RateLimitConfig { return rl }
}

func TestMiddleware_Disabled(t *testing.T) {
	handler := Middleware(NewLimiter(nil), staticCfg(config.RateLimitConfig{}), nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/synth", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if h := rec.Header().Get(headerRateLimitRequests); h != "" {
		t.Errorf("expected no rate limit headers when disabled, got %s", h)
	}
}

func TestMiddleware_AllowsRequest(t *testing.T) {
	handler := Middleware(NewLimiter(nil), staticCfg(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100}), nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/synth", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if h := rec.Header().Get(headerRateLimitRequests); h != "100" {
		t.Errorf("expected X-RateLimit-Limit-Requests=100, got %s", h)
	}
	if h := rec.Header().Get(headerRateLimitRemainingRequests); h != "99" {
		t.Errorf("expected X-RateLimit-Remaining-Requests=99, got %s", h)
	}
	if h := rec.Header().Get(headerRateLimitReset); h == "" {
		t.Error("expected X-RateLimit-Reset-Requests header")
	}
}

func TestMiddleware_DefaultRPM(t *testing.T) {
	handler := Middleware(NewLimiter(nil), staticCfg(config.RateLimitConfig{Enabled: true}), nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/validate", nil))

	if h := rec.Header().Get(headerRateLimitRequests); h != "60" {
		t.Errorf("expected default limit 60, got %s", h)
	}
}

func TestMiddleware_RejectsOverLimit(t *testing.T) {
	_, rdb := newTestRedis(t)
	metrics := telemetry.NewMetricsWith(prometheus.NewRegistry())
	handler := Middleware(NewLimiter(rdb), staticCfg(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}), metrics)(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/synth", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	second.Header().Set("X-Request-ID", "req-2")
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/synth", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if h := second.Header().Get(headerRetryAfter); h != "30" {
		t.Errorf("expected Retry-After=30, got %s", h)
	}

	var resp httputil.APIError
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Error.Code != "rate_limit_exceeded" || resp.Error.RequestID != "req-2" {
		t.Errorf("unexpected error body: %+v", resp.Error)
	}

	// Validation has its own window.
	other := httptest.NewRecorder()
	handler.ServeHTTP(other, httptest.NewRequest(http.MethodPost, "/v1/validate", nil))
	if other.Code != http.StatusOK {
		t.Errorf("expected /v1/validate to be allowed, got %d", other.Code)
	}
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	if got := clientAddr(r); got != "10.1.2.3" {
		t.Errorf("clientAddr = %q", got)
	}
	r.RemoteAddr = "unix"
	if got := clientAddr(r); got != "unix" {
		t.Errorf("clientAddr = %q", got)
	}
}
