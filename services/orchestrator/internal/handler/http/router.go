package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Devendra181/ECommerceSystem-sub000/pkg/health"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/middleware"
)

// NewRouter builds the orchestrator's HTTP surface: health endpoints for
// the service registry and kubernetes-style probes, plus metrics.
func NewRouter(healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Correlation())
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health", healthHandler.HealthyHandler())
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	return r
}
