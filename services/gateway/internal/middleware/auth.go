package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Devendra181/ECommerceSystem-sub000/pkg/logger"
	"github.com/Devendra181/ECommerceSystem-sub000/services/gateway/internal/config"
)

type contextKey string

const subjectKey contextKey = "auth_subject"

// nameIdentifierClaim is the WS-* claim URI some identity providers emit
// instead of the plain "sub" claim.
const nameIdentifierClaim = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"

// SubjectFromContext returns the verified token subject, or "" when the
// request was anonymous.
func SubjectFromContext(ctx context.Context) string {
	if sub, ok := ctx.Value(subjectKey).(string); ok {
		return sub
	}
	return ""
}

// publicRoutes defines path prefixes and methods that do not require
// authentication.
var publicRoutes = []struct {
	method string
	prefix string
}{
	{method: http.MethodGet, prefix: "/products"},
	{method: http.MethodGet, prefix: "/health"},
	{method: http.MethodGet, prefix: "/metrics"},
}

func isPublicRoute(method, path string) bool {
	for _, route := range publicRoutes {
		if method == route.method && strings.HasPrefix(path, route.prefix) {
			return true
		}
	}
	// OPTIONS requests are always allowed (for CORS preflight).
	return method == http.MethodOptions
}

// JWTAuth returns middleware that validates bearer tokens. Issuer, lifetime,
// and signature are checked; audience is not; no clock skew is tolerated.
// The verified subject is stored in context and forwarded on the X-User-ID
// header for downstream services.
func JWTAuth(cfg config.JWTSettings, l *slog.Logger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(0),
	)
	keyFunc := func(token *jwt.Token) (any, error) {
		return []byte(cfg.SecretKey), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format")
				return
			}

			token, err := parser.Parse(tokenString, keyFunc)
			if err != nil || !token.Valid {
				l.WarnContext(r.Context(), "invalid JWT token",
					slog.String("path", r.URL.Path),
					slog.String("error", errString(err)),
				)
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token claims")
				return
			}

			subject := subjectFromClaims(claims)
			ctx := r.Context()
			if subject != "" {
				ctx = context.WithValue(ctx, subjectKey, subject)
				ctx = logger.WithUserID(ctx, subject)
				r.Header.Set("X-User-ID", subject)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireBearer re-checks that every non-public request still carries a
// well-formed bearer header. It runs after JWTAuth so a handler further down
// the chain can never see a protected request without one.
func RequireBearer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			scheme, _, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "bearer token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// subjectFromClaims resolves the token subject: nameIdentifier first, then
// sub, then userId.
func subjectFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{nameIdentifierClaim, "sub", "userId"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}

func errString(err error) string {
	if err != nil {
		return err.Error()
	}
	return ""
}
