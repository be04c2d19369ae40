package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/Devendra181/ECommerceSystem-sub000/pkg/logger"
)

// CorrelationHeader is the canonical header carrying the request correlation ID.
const CorrelationHeader = "X-Correlation-ID"

const maxCorrelationIDLength = 64

// Correlation ensures every request carries a correlation ID. A valid inbound
// X-Correlation-ID is reused unchanged; otherwise a fresh 128-bit hex ID is
// minted. The ID is written back to the response header, onto the outgoing
// request header, and into the request context for logging and propagation.
func Correlation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get(CorrelationHeader)
			if !validCorrelationID(correlationID) {
				correlationID = newCorrelationID()
			}

			r.Header.Set(CorrelationHeader, correlationID)
			w.Header().Set(CorrelationHeader, correlationID)

			ctx := logger.WithCorrelationID(r.Context(), correlationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

func newCorrelationID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
