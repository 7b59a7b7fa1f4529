package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/profilekeeper/internal/model"
)

func requestForSession(id string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/profile", nil)
	return req.WithContext(ContextWithSession(req.Context(), &model.Session{ID: id, Email: id + "@x.com"}))
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(30)
	if float64(cfg.Rate) != 0.5 {
		t.Errorf("Rate = %v, want 0.5", cfg.Rate)
	}
	if cfg.Burst != 30 {
		t.Errorf("Burst = %d, want 30", cfg.Burst)
	}

	if cfg := RateLimiterConfigPerMinute(0); cfg.Burst != 1 {
		t.Errorf("Burst for 0/min = %d, want clamped to 1", cfg.Burst)
	}
}

func TestRateLimitMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 5, IdleTTL: time.Minute})

	calls := 0
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestForSession("s1"))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}
	if calls != 5 {
		t.Errorf("handler call count = %d, want 5", calls)
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	renderer := &recordingRenderer{}
	cfg := RateLimiterConfig{Rate: 0.5, Burst: 2, IdleTTL: time.Minute, ErrorRenderer: renderer}
	rl := NewRateLimiter(cfg)

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestForSession("s1"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestForSession("s1"))

	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}
	if got, _ := strconv.Atoi(w.Header().Get("Retry-After")); got != 2 {
		t.Errorf("Retry-After = %q, want 2", w.Header().Get("Retry-After"))
	}
	if renderer.apiErr == nil || renderer.apiErr.Code != model.ErrCodeRateLimited {
		t.Errorf("apiErr = %+v, want RATE_LIMITED", renderer.apiErr)
	}
}

func TestRateLimitMiddleware_IndependentPerSession(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.1, Burst: 1, IdleTTL: time.Minute})
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), requestForSession("s1"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestForSession("s2"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("other session status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount() = %d, want 2", rl.LimiterCount())
	}
}

func TestRateLimitMiddleware_NoSessionPassesThrough(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.1, Burst: 1, IdleTTL: time.Minute})
	calls := 0
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/profile", nil))
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if rl.LimiterCount() != 0 {
		t.Errorf("LimiterCount() = %d, want 0", rl.LimiterCount())
	}
}

func TestRateLimiter_SweepsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, IdleTTL: time.Minute})
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.lastSweep = now

	rl.allow("old")
	now = now.Add(2 * time.Minute)
	rl.allow("new")

	if rl.LimiterCount() != 1 {
		t.Errorf("LimiterCount() = %d, want 1 after sweeping the idle entry", rl.LimiterCount())
	}
}
