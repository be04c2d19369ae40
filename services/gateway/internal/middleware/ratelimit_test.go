package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Devendra181/ECommerceSystem-sub000/services/gateway/internal/config"
)

func rateLimitConfig() config.RateLimiting {
	return config.RateLimiting{
		IsEnabled:  true,
		Default:    config.RateLimitPolicy{PermitLimit: 2, WindowSeconds: 60, QueueLimit: 0},
		ProductAPI: config.RateLimitPolicy{PermitLimit: 5, WindowSeconds: 60, QueueLimit: 0},
		OrderAPI:   config.RateLimitPolicy{PermitLimit: 2, WindowSeconds: 60, QueueLimit: 0},
		PaymentAPI: config.RateLimitPolicy{PermitLimit: 1, QueueLimit: 0},
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_RejectsBeyondPermitLimit(t *testing.T) {
	handler := RateLimit(rateLimitConfig(), discardLogger())(okHandler())

	var lastCode int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.RemoteAddr = "10.1.1.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		lastCode = rr.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestRateLimit_RejectionBodyAndHeaders(t *testing.T) {
	handler := RateLimit(rateLimitConfig(), discardLogger())(okHandler())

	var rr *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.RemoteAddr = "10.1.1.2:1234"
		rr = httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.JSONEq(t,
		`{"error":"rate_limit_exceeded","message":"Too many requests. Please try again later."}`,
		rr.Body.String())
}

func TestRateLimit_IdentitiesAreIndependent(t *testing.T) {
	handler := RateLimit(rateLimitConfig(), discardLogger())(okHandler())

	exhaust := func(addr string) int {
		var code int
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodGet, "/orders", nil)
			req.RemoteAddr = addr
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			code = rr.Code
		}
		return code
	}

	assert.Equal(t, http.StatusOK, exhaust("10.2.2.1:1"))
	// A different caller still has its full budget.
	assert.Equal(t, http.StatusOK, exhaust("10.2.2.2:1"))
}

func TestRateLimit_PoliciesAreIndependentPerPath(t *testing.T) {
	handler := RateLimit(rateLimitConfig(), discardLogger())(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.RemoteAddr = "10.3.3.3:1"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	// OrderApi budget is gone but ProductApi still admits the same caller.
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.RemoteAddr = "10.3.3.3:1"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimit_DisabledAdmitsEverything(t *testing.T) {
	cfg := rateLimitConfig()
	cfg.IsEnabled = false
	handler := RateLimit(cfg, discardLogger())(okHandler())

	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.RemoteAddr = "10.4.4.4:1"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestIdentityKey_PrefersTokenSubject(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.RemoteAddr = "10.5.5.5:1"
	req = req.WithContext(context.WithValue(req.Context(), subjectKey, "usr-7"))

	assert.Equal(t, "user:usr-7", identityKey(req))
}

func TestIdentityKey_XForwardedForFirstEntry(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.RemoteAddr = "10.5.5.5:1"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "ip:203.0.113.9", identityKey(req))
}

func TestIdentityKey_FallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.RemoteAddr = "198.51.100.4:9999"

	assert.Equal(t, "ip:198.51.100.4", identityKey(req))
}

func TestFixedWindow_ResetsAfterWindow(t *testing.T) {
	lim := newFixedWindowLimiter(config.RateLimitPolicy{PermitLimit: 1, WindowSeconds: 60})
	now := time.Now()
	lim.now = func() time.Time { return now }

	_, ok := lim.tryAcquire(context.Background())
	assert.True(t, ok)
	_, ok = lim.tryAcquire(context.Background())
	assert.False(t, ok)

	now = now.Add(61 * time.Second)
	_, ok = lim.tryAcquire(context.Background())
	assert.True(t, ok)
}

func TestConcurrencyLimiter_ReleaseFreesPermit(t *testing.T) {
	lim := newConcurrencyLimiter(config.RateLimitPolicy{PermitLimit: 1, QueueLimit: 0})

	release, ok := lim.tryAcquire(context.Background())
	assert.True(t, ok)

	_, ok = lim.tryAcquire(context.Background())
	assert.False(t, ok)

	release()
	release2, ok := lim.tryAcquire(context.Background())
	assert.True(t, ok)
	release2()
}

func TestConcurrencyLimiter_QueuedWaiterHonorsCancellation(t *testing.T) {
	lim := newConcurrencyLimiter(config.RateLimitPolicy{PermitLimit: 1, QueueLimit: 1})

	release, ok := lim.tryAcquire(context.Background())
	assert.True(t, ok)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok = lim.tryAcquire(ctx)
	assert.False(t, ok)
}
