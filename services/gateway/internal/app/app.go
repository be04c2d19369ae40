package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Devendra181/ECommerceSystem-sub000/pkg/database"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/health"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/httpclient"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/registry"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/tracing"
	"github.com/Devendra181/ECommerceSystem-sub000/services/gateway/internal/aggregate"
	"github.com/Devendra181/ECommerceSystem-sub000/services/gateway/internal/config"
	"github.com/Devendra181/ECommerceSystem-sub000/services/gateway/internal/handler"
	"github.com/Devendra181/ECommerceSystem-sub000/services/gateway/internal/routing"
)

// App wires together all dependencies and runs the API gateway.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	redisClient     *redis.Client
	registryClient  *registry.Client
	resolver        *routing.Resolver
	httpServer      *http.Server
	tracingShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracingShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  "gateway",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.TracingEndpoint,
		SampleRate:   1.0,
		Enabled:      cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to redis", slog.String("addr", cfg.Redis.Addr()))

	registryClient, err := registry.NewClient(cfg.Consul.Address, logger)
	if err != nil {
		return nil, fmt.Errorf("create consul client: %w", err)
	}

	resolver := routing.NewResolver(
		registryClient,
		routing.DefaultClusters(),
		cfg.Routing.RefreshInterval,
		cfg.Routing.ErrorRefreshInterval,
		logger,
	)
	proxy := routing.NewProxy(resolver, logger)

	client := httpclient.New(httpclient.DefaultConfig())
	fetcher := aggregate.NewHTTPFetcher(client, registryClient, aggregate.DefaultServiceNames(), logger)
	aggregator := aggregate.NewAggregator(fetcher, logger)

	cachePolicies, err := config.ParseCachePolicies(cfg.Cache.CachePoliciesRaw)
	if err != nil {
		return nil, err
	}

	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("consul", registryClient.Ping)

	router := handler.NewRouter(handler.Deps{
		Config:        cfg,
		Logger:        logger,
		Redis:         redisClient,
		Health:        healthHandler,
		Proxy:         proxy,
		Aggregator:    aggregator,
		CachePolicies: cachePolicies,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		redisClient:     redisClient,
		registryClient:  registryClient,
		resolver:        resolver,
		httpServer:      httpServer,
		tracingShutdown: tracingShutdown,
	}, nil
}

// Run starts the destination refresher and the HTTP server, then blocks
// until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	if a.cfg.Consul.ServiceName != "" {
		if err := a.registryClient.Register(ctx, a.cfg.Consul); err != nil {
			return err
		}
	}

	if err := a.resolver.Refresh(ctx); err != nil {
		a.logger.Warn("initial destination resolution incomplete", slog.String("error", err.Error()))
	}
	go a.resolver.Run(ctx)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.cfg.Consul.ServiceName != "" {
		if err := a.registryClient.Deregister(shutdownCtx, a.cfg.Consul.ServiceID); err != nil {
			a.logger.Error("consul deregister error", slog.String("error", err.Error()))
		}
	}

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	if err := a.tracingShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
