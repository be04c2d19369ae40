package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Devendra181/ECommerceSystem-sub000/pkg/httpclient"
)

// Resolver locates one healthy instance of a named service.
type Resolver interface {
	ResolveOne(ctx context.Context, serviceName string) (string, error)
}

// ServiceNames holds the registry names of the downstream services.
type ServiceNames struct {
	Order   string
	User    string
	Product string
	Payment string
}

// DefaultServiceNames matches the names services register under.
func DefaultServiceNames() ServiceNames {
	return ServiceNames{
		Order:   "order-service",
		User:    "user-service",
		Product: "product-service",
		Payment: "payment-service",
	}
}

// httpFetcher implements all downstream branches over the shared retrying
// HTTP client and the service registry. Each downstream service gets its
// own circuit breaker so one failing dependency cannot trip the others.
type httpFetcher struct {
	resolver Resolver
	names    ServiceNames
	breakers map[string]*httpclient.CircuitBreakerClient
}

// NewHTTPFetcher builds the registry-backed downstream fetcher.
func NewHTTPFetcher(client *httpclient.Client, resolver Resolver, names ServiceNames, l *slog.Logger) *httpFetcher {
	breakers := make(map[string]*httpclient.CircuitBreakerClient, 4)
	for _, name := range []string{names.Order, names.User, names.Product, names.Payment} {
		breakers[name] = httpclient.NewCircuitBreakerClient(client, httpclient.DefaultCircuitBreakerConfig(name), l)
	}
	return &httpFetcher{resolver: resolver, names: names, breakers: breakers}
}

// envelope is the standard response wrapper downstream services reply with.
type envelope[T any] struct {
	Data T `json:"data"`
}

func getJSON[T any](ctx context.Context, f *httpFetcher, serviceName, path string) (T, error) {
	var zero T

	base, err := f.resolver.ResolveOne(ctx, serviceName)
	if err != nil {
		return zero, fmt.Errorf("resolve %s: %w", serviceName, err)
	}

	resp, err := f.breakers[serviceName].Get(ctx, base+path)
	if err != nil {
		return zero, err
	}
	if resp.StatusCode != http.StatusOK {
		return zero, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return zero, fmt.Errorf("decode %s response: %w", serviceName, err)
	}
	return env.Data, nil
}

func (f *httpFetcher) Order(ctx context.Context, orderID string) (*Order, error) {
	return getJSON[*Order](ctx, f, f.names.Order, "/api/orders/"+orderID)
}

func (f *httpFetcher) User(ctx context.Context, userID string) (*User, error) {
	return getJSON[*User](ctx, f, f.names.User, "/api/users/"+userID)
}

// Products performs the bulk lookup, forwarding the caller's Authorization
// header because the product bulk endpoint requires it.
func (f *httpFetcher) Products(ctx context.Context, productIDs []string, authorization string) ([]Product, error) {
	base, err := f.resolver.ResolveOne(ctx, f.names.Product)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", f.names.Product, err)
	}

	payload, err := json.Marshal(map[string][]string{"productIds": productIDs})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/products/by-ids", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := f.breakers[f.names.Product].Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, f.names.Product)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope[[]Product]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", f.names.Product, err)
	}
	return env.Data, nil
}

func (f *httpFetcher) Payment(ctx context.Context, orderID string) (*Payment, error) {
	return getJSON[*Payment](ctx, f, f.names.Payment, "/api/payments/order/"+orderID)
}
