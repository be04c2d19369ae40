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
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/messaging"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/registry"
	"github.com/Devendra181/ECommerceSystem-sub000/pkg/tracing"
	"github.com/Devendra181/ECommerceSystem-sub000/services/orchestrator/internal/config"
	handler "github.com/Devendra181/ECommerceSystem-sub000/services/orchestrator/internal/handler/http"
	"github.com/Devendra181/ECommerceSystem-sub000/services/orchestrator/internal/saga"
)

// App wires together all dependencies and runs the saga orchestrator.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	broker          *messaging.Connection
	redisClient     *redis.Client
	consumers       []consumerBinding
	registryClient  *registry.Client
	httpServer      *http.Server
	tracingShutdown func(context.Context) error
}

type consumerBinding struct {
	consumer *messaging.Consumer
	handler  messaging.DeliveryHandler
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracingShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  "orchestrator",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.TracingEndpoint,
		SampleRate:   1.0,
		Enabled:      cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	broker, err := messaging.Connect(cfg.RabbitMQ)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	logger.Info("connected to RabbitMQ",
		slog.String("host", cfg.RabbitMQ.HostName),
		slog.String("exchange", cfg.RabbitMQ.ExchangeName),
	)

	var redisClient *redis.Client
	var store saga.SnapshotStore
	if cfg.SnapshotStore == "redis" {
		redisClient, err = database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			broker.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		store = saga.NewRedisStore(redisClient)
		logger.Info("using redis snapshot store", slog.String("addr", cfg.Redis.Addr()))
	} else {
		store = saga.NewMemoryStore()
		logger.Info("using in-memory snapshot store")
	}

	publisher := messaging.NewPublisher(broker.Channel(), cfg.RabbitMQ.ExchangeName, logger)
	orchestrator := saga.NewOrchestrator(store, publisher, cfg.SnapshotTTL(), logger)

	consumers, err := buildConsumers(broker, orchestrator, logger)
	if err != nil {
		broker.Close()
		return nil, err
	}

	healthHandler := health.NewHandler()
	healthHandler.Register("rabbitmq", broker.Ping)
	if redisClient != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	var registryClient *registry.Client
	if cfg.Consul.ServiceName != "" {
		registryClient, err = registry.NewClient(cfg.Consul.Address, logger)
		if err != nil {
			broker.Close()
			return nil, fmt.Errorf("create consul client: %w", err)
		}
	}

	router := handler.NewRouter(healthHandler, logger)
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
		broker:          broker,
		redisClient:     redisClient,
		consumers:       consumers,
		registryClient:  registryClient,
		httpServer:      httpServer,
		tracingShutdown: tracingShutdown,
	}, nil
}

// buildConsumers binds the three orchestrator queues to the saga handlers.
// Each consumer gets its own channel so prefetch applies per queue.
func buildConsumers(broker *messaging.Connection, o *saga.Orchestrator, logger *slog.Logger) ([]consumerBinding, error) {
	bindings := []struct {
		queue   string
		handler messaging.DeliveryHandler
	}{
		{messaging.QOrchestratorOrderPlaced, messaging.Handle(o.HandleOrderPlaced)},
		{messaging.QOrchestratorStockReserved, messaging.Handle(o.HandleStockReserved)},
		{messaging.QOrchestratorStockFailed, messaging.Handle(o.HandleStockFailed)},
	}

	consumers := make([]consumerBinding, 0, len(bindings))
	for _, b := range bindings {
		ch, err := broker.NewChannel()
		if err != nil {
			return nil, fmt.Errorf("open channel for %s: %w", b.queue, err)
		}
		consumers = append(consumers, consumerBinding{
			consumer: messaging.NewConsumer(ch, b.queue, logger),
			handler:  b.handler,
		})
	}
	return consumers, nil
}

// Run starts the HTTP server and consumers, then blocks until the context
// is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	if a.registryClient != nil {
		if err := a.registryClient.Register(ctx, a.cfg.Consul); err != nil {
			return err
		}
	}

	for _, b := range a.consumers {
		binding := b
		go func() {
			if err := binding.consumer.Start(ctx, binding.handler); err != nil {
				a.logger.Error("consumer error", slog.String("error", err.Error()))
			}
		}()
	}

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

	if a.registryClient != nil {
		if err := a.registryClient.Deregister(shutdownCtx, a.cfg.Consul.ServiceID); err != nil {
			a.logger.Error("consul deregister error", slog.String("error", err.Error()))
		}
	}

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.broker.Close(); err != nil {
		a.logger.Error("rabbitmq close error", slog.String("error", err.Error()))
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	if err := a.tracingShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
