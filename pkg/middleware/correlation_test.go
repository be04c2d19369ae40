package middleware

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devendra181/ECommerceSystem-sub000/pkg/logger"
)

func runCorrelation(t *testing.T, inbound string) (*httptest.ResponseRecorder, string) {
	t.Helper()

	var ctxID string
	handler := Correlation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = logger.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
	if inbound != "" {
		req.Header.Set(CorrelationHeader, inbound)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr, ctxID
}

func TestCorrelation_EchoesInboundIDUnchanged(t *testing.T) {
	rr, ctxID := runCorrelation(t, "client-supplied-id-42")

	assert.Equal(t, "client-supplied-id-42", rr.Header().Get(CorrelationHeader))
	assert.Equal(t, "client-supplied-id-42", ctxID)
}

func TestCorrelation_MintsWhenMissing(t *testing.T) {
	rr, ctxID := runCorrelation(t, "")

	minted := rr.Header().Get(CorrelationHeader)
	require.NotEmpty(t, minted)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), minted)
	assert.Equal(t, minted, ctxID)
}

func TestCorrelation_MintsWhenTooLong(t *testing.T) {
	rr, _ := runCorrelation(t, strings.Repeat("a", 65))

	minted := rr.Header().Get(CorrelationHeader)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), minted)
}

func TestCorrelation_MintsWhenNonPrintable(t *testing.T) {
	rr, _ := runCorrelation(t, "bad\tid")

	minted := rr.Header().Get(CorrelationHeader)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), minted)
}

func TestCorrelation_MintedIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		rr, _ := runCorrelation(t, "")
		id := rr.Header().Get(CorrelationHeader)
		assert.False(t, seen[id], "duplicate correlation id %s", id)
		seen[id] = true
	}
}
