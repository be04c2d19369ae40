package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Devendra181/ECommerceSystem-sub000/services/gateway/internal/config"
)

// limiter admits or rejects one permit request. The release function must be
// called when the request completes; fixed-window permits expire with the
// window so their release is a no-op.
type limiter interface {
	tryAcquire(ctx context.Context) (release func(), ok bool)
}

// noopLimiter always admits. Used when rate limiting is globally disabled.
type noopLimiter struct{}

func (noopLimiter) tryAcquire(ctx context.Context) (func(), bool) {
	return func() {}, true
}

// fixedWindowLimiter admits up to permits per window. Excess requests queue
// up to queueLimit waiting for the next window, then are rejected.
type fixedWindowLimiter struct {
	mu         sync.Mutex
	permits    int
	window     time.Duration
	queueLimit int

	count     int
	windowEnd time.Time
	waiters   int
	now       func() time.Time
}

func newFixedWindowLimiter(p config.RateLimitPolicy) *fixedWindowLimiter {
	return &fixedWindowLimiter{
		permits:    p.PermitLimit,
		window:     p.Window(),
		queueLimit: p.QueueLimit,
		now:        time.Now,
	}
}

func (l *fixedWindowLimiter) tryAcquire(ctx context.Context) (func(), bool) {
	for {
		l.mu.Lock()
		now := l.now()
		if now.After(l.windowEnd) {
			l.windowEnd = now.Add(l.window)
			l.count = 0
		}
		if l.count < l.permits {
			l.count++
			l.mu.Unlock()
			return func() {}, true
		}
		if l.waiters >= l.queueLimit {
			l.mu.Unlock()
			return nil, false
		}
		l.waiters++
		wait := l.windowEnd.Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			l.decWaiters()
			return nil, false
		}
		l.decWaiters()
	}
}

func (l *fixedWindowLimiter) decWaiters() {
	l.mu.Lock()
	l.waiters--
	l.mu.Unlock()
}

// concurrencyLimiter caps simultaneous in-flight requests. Excess requests
// queue up to queueLimit, then are rejected. The permit is held until the
// release function runs.
type concurrencyLimiter struct {
	sem        chan struct{}
	queueLimit int

	mu      sync.Mutex
	waiters int
}

func newConcurrencyLimiter(p config.RateLimitPolicy) *concurrencyLimiter {
	return &concurrencyLimiter{
		sem:        make(chan struct{}, p.PermitLimit),
		queueLimit: p.QueueLimit,
	}
}

func (l *concurrencyLimiter) tryAcquire(ctx context.Context) (func(), bool) {
	select {
	case l.sem <- struct{}{}:
		return l.release, true
	default:
	}

	l.mu.Lock()
	if l.waiters >= l.queueLimit {
		l.mu.Unlock()
		return nil, false
	}
	l.waiters++
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.waiters--
		l.mu.Unlock()
	}()

	select {
	case l.sem <- struct{}{}:
		return l.release, true
	case <-ctx.Done():
		return nil, false
	}
}

func (l *concurrencyLimiter) release() {
	<-l.sem
}

// limiterStore lazily creates one limiter per policy_identity key.
// Lookup-or-create is atomic per key.
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]limiter
	cfg      config.RateLimiting
}

func newLimiterStore(cfg config.RateLimiting) *limiterStore {
	return &limiterStore{
		limiters: make(map[string]limiter),
		cfg:      cfg,
	}
}

func (s *limiterStore) get(policyName string, policy config.RateLimitPolicy, identity string) limiter {
	key := policyName + "_" + identity

	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.limiters[key]; ok {
		return l
	}

	var l limiter
	if policyName == "PaymentApi" {
		l = newConcurrencyLimiter(policy)
	} else {
		l = newFixedWindowLimiter(policy)
	}
	s.limiters[key] = l
	return l
}

// selectPolicy maps a request path to its named policy.
func selectPolicy(cfg config.RateLimiting, path string) (string, config.RateLimitPolicy) {
	switch {
	case strings.HasPrefix(path, "/products"):
		return "ProductApi", cfg.ProductAPI
	case strings.HasPrefix(path, "/orders"):
		return "OrderApi", cfg.OrderAPI
	case strings.HasPrefix(path, "/payments"):
		return "PaymentApi", cfg.PaymentAPI
	default:
		return "Default", cfg.Default
	}
}

// identityKey derives the limiter identity: the verified token subject when
// present, else the caller's address. Prefixes keep the namespaces disjoint.
func identityKey(r *http.Request) string {
	if sub := SubjectFromContext(r.Context()); sub != "" {
		return "user:" + sub
	}
	return "ip:" + clientAddress(r)
}

func clientAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr := strings.TrimSpace(first); addr != "" {
			return addr
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}

const rateLimitBody = `{"error":"rate_limit_exceeded","message":"Too many requests. Please try again later."}`

// RateLimit returns middleware enforcing the per-policy, per-identity
// limits. Rejections get 429 with a Retry-After hint.
func RateLimit(cfg config.RateLimiting, l *slog.Logger) func(http.Handler) http.Handler {
	store := newLimiterStore(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.IsEnabled {
				next.ServeHTTP(w, r)
				return
			}

			policyName, policy := selectPolicy(cfg, r.URL.Path)
			identity := identityKey(r)
			lim := store.get(policyName, policy, identity)

			release, ok := lim.tryAcquire(r.Context())
			if !ok {
				l.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("policy", policyName),
					slog.String("identity", identity),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(rateLimitBody))
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
