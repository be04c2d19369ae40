package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Devendra181/ECommerceSystem-sub000/services/gateway/internal/config"
)

// CacheKey builds the canonical cache key for a request:
// METHOD ':' lowercased-path, optionally followed by '?' and the query
// parameters sorted by key with both keys and values URL-encoded and keys
// lowercased. Equivalent query strings produce identical keys.
func CacheKey(r *http.Request) string {
	key := r.Method + ":" + strings.ToLower(r.URL.Path)

	query := r.URL.Query()
	if len(query) == 0 {
		return key
	}

	type pair struct{ k, v string }
	var pairs []pair
	for k, values := range query {
		lk := strings.ToLower(k)
		for _, v := range values {
			pairs = append(pairs, pair{lk, v})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	var sb strings.Builder
	sb.WriteString(key)
	sb.WriteByte('?')
	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.v))
	}
	return sb.String()
}

// matchCachePolicy returns the TTL seconds for the longest matching path
// prefix, or false when the path is not cacheable. Matching is
// case-insensitive via the lowercased path.
func matchCachePolicy(policies map[string]int, path string) (int, bool) {
	lowered := strings.ToLower(path)
	bestLen := -1
	ttl := 0
	for prefix, seconds := range policies {
		if strings.HasPrefix(lowered, prefix) && len(prefix) > bestLen {
			bestLen = len(prefix)
			ttl = seconds
		}
	}
	return ttl, bestLen >= 0
}

// captureWriter buffers the downstream response so the body can be stored
// after completion.
type captureWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{header: make(http.Header), status: http.StatusOK}
}

func (c *captureWriter) Header() http.Header { return c.header }

func (c *captureWriter) WriteHeader(status int) { c.status = status }

func (c *captureWriter) Write(b []byte) (int, error) { return c.body.Write(b) }

// Cache returns middleware that serves GET responses from Redis. Cache
// failures never fail the request; they degrade to pass-through.
func Cache(client *redis.Client, cfg config.RedisCacheSettings, policies map[string]int, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			ttlSeconds, cacheable := matchCachePolicy(policies, r.URL.Path)
			if !cacheable {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.InstanceName + ":" + CacheKey(r)
			ctx := r.Context()

			cached, err := client.Get(ctx, key).Bytes()
			if err == nil {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write(cached)
				return
			}
			if err != redis.Nil {
				l.WarnContext(ctx, "cache read failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}

			capture := newCaptureWriter()
			next.ServeHTTP(capture, r)

			// Replay the captured response to the client regardless of status.
			for name, values := range capture.header {
				for _, v := range values {
					w.Header().Add(name, v)
				}
			}
			w.WriteHeader(capture.status)
			_, _ = w.Write(capture.body.Bytes())

			if capture.status != http.StatusOK {
				return
			}

			if ttlSeconds <= 0 {
				ttlSeconds = cfg.DefaultCacheDurationInSeconds
			}
			ttl := time.Duration(ttlSeconds) * time.Second

			if err := client.Set(ctx, key, capture.body.Bytes(), ttl).Err(); err != nil {
				l.WarnContext(ctx, "cache store failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}
		})
	}
}
