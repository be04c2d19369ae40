package aggregate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Devendra181/ECommerceSystem-sub000/pkg/errors"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/httpclient"
)

type staticResolver struct {
	baseURL string
}

func (s staticResolver) ResolveOne(ctx context.Context, serviceName string) (string, error) {
	return s.baseURL, nil
}

func newFetcher(t *testing.T, handler http.Handler) *httpFetcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := httpclient.New(httpclient.DefaultConfig())
	return NewHTTPFetcher(client, staticResolver{baseURL: server.URL}, DefaultServiceNames(), discardLogger())
}

func TestHTTPFetcher_OrderUnwrapsEnvelope(t *testing.T) {
	f := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/ord-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"ord-1","orderNumber":"ORD-9","userId":"usr-1","totalAmount":10.5}}`))
	}))

	order, err := f.Order(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-9", order.OrderNumber)
	assert.Equal(t, 10.5, order.TotalAmount)
}

func TestHTTPFetcher_Order404MapsToNotFound(t *testing.T) {
	f := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"order not found"}}`))
	}))

	_, err := f.Order(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestHTTPFetcher_ProductsForwardsAuthorization(t *testing.T) {
	var gotAuth string
	var gotBody map[string][]string

	f := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/products/by-ids", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"p1","name":"Widget"}]}`))
	}))

	products, err := f.Products(context.Background(), []string{"p1", "p2"}, "Bearer tok")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Widget", products[0].Name)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, []string{"p1", "p2"}, gotBody["productIds"])
}
