package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Devendra181/ECommerceSystem-sub000/pkg/health"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/middleware"
	"github.com/Devendra181/ECommerceSystem-sub000/services/gateway/internal/aggregate"
	"github.com/Devendra181/ECommerceSystem-sub000/services/gateway/internal/config"
	gwmiddleware "github.com/Devendra181/ECommerceSystem-sub000/services/gateway/internal/middleware"
	"github.com/Devendra181/ECommerceSystem-sub000/services/gateway/internal/routing"
)

// Deps carries everything the router needs.
type Deps struct {
	Config        *config.Config
	Logger        *slog.Logger
	Redis         *redis.Client
	Health        *health.Handler
	Proxy         *routing.Proxy
	Aggregator    *aggregate.Aggregator
	CachePolicies map[string]int
}

// NewRouter assembles the gateway pipeline. Compression sits outside the
// cache so cached entries hold canonical uncompressed bodies and hits get
// encoded per request.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Correlation())
	r.Use(middleware.RequestLogging(d.Logger))
	r.Use(middleware.PrometheusMetrics("gateway"))
	r.Use(middleware.RequestLogger(d.Logger))

	r.Get("/health", d.Health.HealthyHandler())
	r.Get("/health/live", d.Health.LivenessHandler())
	r.Get("/health/ready", d.Health.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(gwmiddleware.JWTAuth(d.Config.JWT, d.Logger))
		r.Use(gwmiddleware.RequireBearer())
		r.Use(gwmiddleware.RateLimit(d.Config.RateLimit, d.Logger))
		r.Use(gwmiddleware.Compress(d.Config.Compression, d.Logger))
		r.Use(gwmiddleware.Cache(d.Redis, d.Config.Cache, d.CachePolicies, d.Logger))

		r.Get("/orders/{orderID}/summary", d.Aggregator.Handler())

		r.Handle("/products", d.Proxy.Handler(routing.ClusterProducts))
		r.Handle("/products/*", d.Proxy.Handler(routing.ClusterProducts))
		r.Handle("/orders", d.Proxy.Handler(routing.ClusterOrders))
		r.Handle("/orders/*", d.Proxy.Handler(routing.ClusterOrders))
		r.Handle("/payments", d.Proxy.Handler(routing.ClusterPayments))
		r.Handle("/payments/*", d.Proxy.Handler(routing.ClusterPayments))
		r.Handle("/users", d.Proxy.Handler(routing.ClusterUsers))
		r.Handle("/users/*", d.Proxy.Handler(routing.ClusterUsers))
		r.Handle("/carts", d.Proxy.Handler(routing.ClusterCarts))
		r.Handle("/carts/*", d.Proxy.Handler(routing.ClusterCarts))
	})

	return r
}
