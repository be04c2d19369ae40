package routing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	instances map[string][]string
	err       error
	calls     int
}

func (f *fakeRegistry) ResolveAll(ctx context.Context, serviceName string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.instances[serviceName], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func productCluster() []Cluster {
	return []Cluster{{Name: "products", RegistryServiceName: "product-service"}}
}

func TestResolver_RefreshBuildsNumberedDestinations(t *testing.T) {
	reg := &fakeRegistry{instances: map[string][]string{
		"product-service": {"http://10.0.0.1:8001", "http://10.0.0.2:8001"},
	}}
	r := NewResolver(reg, productCluster(), 0, 0, discardLogger())

	require.NoError(t, r.Refresh(context.Background()))

	dests := r.Destinations("products")
	require.Len(t, dests, 2)
	assert.Equal(t, "product-service-1", dests[0].Key)
	assert.Equal(t, "product-service-2", dests[1].Key)
	assert.Equal(t, "http://10.0.0.1:8001", dests[0].Target.String())
}

func TestResolver_ErrorKeepsPreviousDestinations(t *testing.T) {
	reg := &fakeRegistry{instances: map[string][]string{
		"product-service": {"http://10.0.0.1:8001"},
	}}
	r := NewResolver(reg, productCluster(), 0, 0, discardLogger())
	require.NoError(t, r.Refresh(context.Background()))

	reg.err = errors.New("consul unavailable")
	err := r.Refresh(context.Background())
	assert.Error(t, err)
	assert.Len(t, r.Destinations("products"), 1)
}

func TestResolver_EmptyResolutionEmptiesCluster(t *testing.T) {
	reg := &fakeRegistry{instances: map[string][]string{
		"product-service": {"http://10.0.0.1:8001"},
	}}
	r := NewResolver(reg, productCluster(), 0, 0, discardLogger())
	require.NoError(t, r.Refresh(context.Background()))

	reg.instances["product-service"] = nil
	require.NoError(t, r.Refresh(context.Background()))
	assert.Empty(t, r.Destinations("products"))
}

func TestResolver_PickPrefersLessLoadedDestination(t *testing.T) {
	reg := &fakeRegistry{instances: map[string][]string{
		"product-service": {"http://10.0.0.1:8001", "http://10.0.0.2:8001"},
	}}
	r := NewResolver(reg, productCluster(), 0, 0, discardLogger())
	require.NoError(t, r.Refresh(context.Background()))

	dests := r.Destinations("products")
	dests[0].inflight.Store(100)

	for i := 0; i < 50; i++ {
		assert.Same(t, dests[1], r.Pick("products"))
	}
}

func TestResolver_PickUnknownClusterReturnsNil(t *testing.T) {
	r := NewResolver(&fakeRegistry{}, nil, 0, 0, discardLogger())
	assert.Nil(t, r.Pick("missing"))
}

func TestProxy_ForwardsToResolvedDestination(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"service":"product"}`))
	}))
	defer backend.Close()

	reg := &fakeRegistry{instances: map[string][]string{
		"product-service": {backend.URL},
	}}
	r := NewResolver(reg, productCluster(), 0, 0, discardLogger())
	p := NewProxy(r, discardLogger())
	require.NoError(t, r.Refresh(context.Background()))

	rr := httptest.NewRecorder()
	p.Handler("products").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"product"`)
}

func TestProxy_NoDestinationsReturns503(t *testing.T) {
	reg := &fakeRegistry{instances: map[string][]string{}}
	r := NewResolver(reg, productCluster(), 0, 0, discardLogger())
	p := NewProxy(r, discardLogger())
	require.NoError(t, r.Refresh(context.Background()))

	rr := httptest.NewRecorder()
	p.Handler("products").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "SERVICE_UNAVAILABLE")
}

func TestProxy_UpstreamFailureReturnsServiceUnavailable(t *testing.T) {
	reg := &fakeRegistry{instances: map[string][]string{
		"product-service": {"http://127.0.0.1:1"},
	}}
	r := NewResolver(reg, productCluster(), 0, 0, discardLogger())
	p := NewProxy(r, discardLogger())
	require.NoError(t, r.Refresh(context.Background()))

	rr := httptest.NewRecorder()
	p.Handler("products").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
