package main

import (
	"context"
	"net/http"
	"os"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sashimarconi/checkout-backend/api/routes"
	"github.com/sashimarconi/checkout-backend/internal/analytics"
	"github.com/sashimarconi/checkout-backend/internal/dispatch"
	"github.com/sashimarconi/checkout-backend/internal/funnel"
	"github.com/sashimarconi/checkout-backend/internal/orders"
	"github.com/sashimarconi/checkout-backend/internal/resolver"
	"github.com/sashimarconi/checkout-backend/pkg/config"
	"github.com/sashimarconi/checkout-backend/pkg/db"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
	"github.com/sashimarconi/checkout-backend/pkg/metrics"
	"github.com/sashimarconi/checkout-backend/pkg/migrate"
	"github.com/sashimarconi/checkout-backend/pkg/pubsub"
	"github.com/sashimarconi/checkout-backend/pkg/redis"
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
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
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

	if err := migrate.RunStartup(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run startup migrations", err)
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

	// The API only publishes funnel events, so a missing GCP project just
	// disables analytics instead of blocking checkout traffic.
	var funnelTopic *gcppubsub.Publisher
	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Warn(context.Background(), "pubsub unavailable, funnel events disabled")
	} else {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		funnelTopic = pubsubClient.FunnelPublisher()
	}

	registry := prometheus.NewRegistry()
	funnelMetrics := metrics.NewFunnelMetrics(registry)

	publisher, err := analytics.NewPublisher(funnelTopic, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create event publisher", err)
		os.Exit(1)
	}

	resolverService, err := resolver.NewService(resolver.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create owner resolver", err)
		os.Exit(1)
	}

	cartRepo := funnel.NewRepository(dbClient.DB())
	funnelService, err := funnel.NewService(
		cartRepo,
		resolverService,
		analytics.NewSessionRepository(dbClient.DB()),
		publisher,
		funnelMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create funnel service", err)
		os.Exit(1)
	}

	dispatchService, err := dispatch.NewService(
		dispatch.NewRepository(dbClient.DB()),
		dispatch.NewHTTPSender(cfg.Conversion),
		funnelMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		cartRepo,
		resolverService,
		dispatchService,
		publisher,
		dbClient,
		funnelMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		FunnelService: funnelService,
		OrderService:  orderService,
		CartRepo:      cartRepo,
		Metrics:       registry,
	}
	if pubsubClient != nil {
		deps.PubSub = pubsubClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(deps),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
