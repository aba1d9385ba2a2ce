package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/localmarket/marketplace-backend/pkg/config"
	"github.com/localmarket/marketplace-backend/pkg/db"
	"github.com/localmarket/marketplace-backend/pkg/logger"
	"github.com/localmarket/marketplace-backend/pkg/metrics"
	"github.com/localmarket/marketplace-backend/pkg/migrate"
	"github.com/localmarket/marketplace-backend/pkg/outbox"
	"github.com/localmarket/marketplace-backend/pkg/outbox/idempotency"
	"github.com/localmarket/marketplace-backend/pkg/outbox/registry"
	"github.com/localmarket/marketplace-backend/pkg/pubsub"
	"github.com/localmarket/marketplace-backend/pkg/redis"
)

func main() {
	boot := logger.New(logger.Options{ServiceName: relayName})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), "no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "config.load_failed", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: relayName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "outbox.relay.exit", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "outbox.relay.stopped")
}

// run wires the relay and blocks until ctx is cancelled. Resources are
// released in reverse order of acquisition.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	database, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeLogged(logg, "database", database.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, database); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	cache, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeLogged(logg, "redis", cache.Close)

	dedupe, err := idempotency.NewManager(cache, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return fmt.Errorf("publish dedupe: %w", err)
	}

	broker, err := pubsub.Open(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer closeLogged(logg, "pubsub", broker.Close)

	routes, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())

	relay, err := NewService(ServiceParams{
		Outbox:        cfg.Outbox,
		Logger:        logg,
		DB:            database,
		Broker:        broker,
		Publishers:    brokerPublishers(broker.Publisher),
		Repository:    outbox.NewRepository(database.DB()),
		DLQRepository: outbox.NewDLQRepository(database.DB()),
		Registry:      routes,
		Dedupe:        dedupe,
		Metrics:       metrics.NewOutboxMetrics(promReg),
	})
	if err != nil {
		return err
	}

	stopMetrics := serveMetrics(ctx, logg, ":"+cfg.App.MetricsPort, promReg)
	defer stopMetrics()

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "topics": routes.Topics()})
	logg.Info(ctx, "outbox.relay.started")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveMetrics(ctx context.Context, logg *logger.Logger, addr string, reg *prometheus.Registry) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics.server_failed", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func closeLogged(logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(context.Background(), "resource", what), "close failed", err)
	}
}
