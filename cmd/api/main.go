package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/localmarket/marketplace-backend/api"
	"github.com/localmarket/marketplace-backend/api/routes"
	"github.com/localmarket/marketplace-backend/internal/conversations"
	"github.com/localmarket/marketplace-backend/internal/couriers"
	"github.com/localmarket/marketplace-backend/internal/deliveries"
	"github.com/localmarket/marketplace-backend/internal/matching"
	"github.com/localmarket/marketplace-backend/internal/notifications"
	"github.com/localmarket/marketplace-backend/internal/orders"
	"github.com/localmarket/marketplace-backend/internal/routing"
	"github.com/localmarket/marketplace-backend/pkg/config"
	"github.com/localmarket/marketplace-backend/pkg/db"
	"github.com/localmarket/marketplace-backend/pkg/logger"
	"github.com/localmarket/marketplace-backend/pkg/maps"
	"github.com/localmarket/marketplace-backend/pkg/metrics"
	"github.com/localmarket/marketplace-backend/pkg/migrate"
	"github.com/localmarket/marketplace-backend/pkg/outbox"
	"github.com/localmarket/marketplace-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: cfg.App.ServiceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	dispatchMetrics := metrics.NewDispatchMetrics(reg)

	resolverParams := routing.ResolverParams{
		Cache:    redisClient,
		CacheTTL: cfg.Routing.CacheTTL,
		Metrics:  dispatchMetrics,
		Logger:   logg,
	}
	if cfg.Routing.Enabled() {
		opts := []maps.Option{maps.WithTimeout(cfg.Routing.Timeout)}
		if cfg.Routing.BaseURL != "" {
			opts = append(opts, maps.WithBaseURL(cfg.Routing.BaseURL))
		}
		mapsClient, err := maps.NewClient(cfg.Routing.APIKey, opts...)
		if err != nil {
			logg.Error(context.Background(), "failed to create routing client", err)
			os.Exit(1)
		}
		resolverParams.Provider = mapsClient
	} else {
		logg.Warn(context.Background(), "routing provider disabled, distances are great-circle")
	}

	gormDB := dbClient.DB()
	ordersRepo := orders.NewRepository(gormDB)
	couriersRepo := couriers.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	pool, err := couriers.NewPool(couriersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create courier pool", err)
		os.Exit(1)
	}

	engine, err := matching.NewEngine(matching.EngineParams{
		Pool:        pool,
		Distances:   routing.NewResolver(resolverParams),
		Concurrency: cfg.Dispatch.RoutingConcurrency,
		Metrics:     dispatchMetrics,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create matching engine", err)
		os.Exit(1)
	}

	matchingService, err := matching.NewService(ordersRepo, engine)
	if err != nil {
		logg.Error(context.Background(), "failed to create matching service", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(gormDB)
	notifier, err := notifications.NewGateway(notificationsRepo, dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification gateway", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	conversationGateway, err := conversations.NewGateway(conversations.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create conversation gateway", err)
		os.Exit(1)
	}

	deliveriesService, err := deliveries.NewService(deliveries.ServiceParams{
		Repo:             deliveries.NewRepository(gormDB),
		Couriers:         couriersRepo,
		Tx:               dbClient,
		Outbox:           outboxService,
		Conversations:    conversationGateway,
		Notifier:         notifier,
		Metrics:          dispatchMetrics,
		Logger:           logg,
		EffectMaxRetries: cfg.Dispatch.EffectMaxRetries,
		EffectBaseWait:   cfg.Dispatch.EffectRetryBaseWait,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create deliveries service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"routing": cfg.Routing.Enabled(),
	})

	handler := routes.NewRouter(cfg, logg, routes.Dependencies{
		DB:            dbClient,
		Redis:         redisClient,
		Gatherer:      reg,
		HTTPMetrics:   metrics.NewHTTPMetrics(reg),
		Matching:      matchingService,
		Deliveries:    deliveriesService,
		Notifications: notificationsService,
	})

	logg.Info(ctx, "starting api server")
	if err := api.Serve(ctx, api.NewServer(addr, handler), logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
