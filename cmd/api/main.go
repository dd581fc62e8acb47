package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/khholdings/agentpay-backend/api/routes"
	"github.com/khholdings/agentpay-backend/internal/agents"
	"github.com/khholdings/agentpay-backend/internal/commissions"
	"github.com/khholdings/agentpay-backend/internal/gatewayrecords"
	"github.com/khholdings/agentpay-backend/internal/notifications"
	"github.com/khholdings/agentpay-backend/internal/payments"
	"github.com/khholdings/agentpay-backend/internal/plans"
	"github.com/khholdings/agentpay-backend/internal/reconcile"
	"github.com/khholdings/agentpay-backend/pkg/config"
	"github.com/khholdings/agentpay-backend/pkg/curlec"
	"github.com/khholdings/agentpay-backend/pkg/db"
	"github.com/khholdings/agentpay-backend/pkg/logger"
	"github.com/khholdings/agentpay-backend/pkg/metrics"
	"github.com/khholdings/agentpay-backend/pkg/migrate"
	"github.com/khholdings/agentpay-backend/pkg/outbox"
	"github.com/khholdings/agentpay-backend/pkg/redis"
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
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing clients", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	curlecClient := curlec.NewClient(cfg.Curlec, logg)
	if !curlecClient.Configured() {
		logg.Warn(context.Background(), "curlec credentials missing, gateway runs in mock mode")
	}

	paymentsRepo := payments.NewRepository(dbClient.DB())
	agentsRepo := agents.NewRepository(dbClient.DB())
	recordsRepo := gatewayrecords.NewRepository(dbClient.DB())
	plansRepo := plans.NewRepository(dbClient.DB())
	payoutsRepo := commissions.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	commissionService := commissions.NewService(commissions.ServiceParams{
		Payouts:       payoutsRepo,
		Agents:        agentsRepo,
		LevelRatesBps: cfg.Commission.LevelRatesBps,
		Logger:        logg,
	})

	reconcileService := reconcile.NewService(reconcile.ServiceParams{
		Tx:        dbClient,
		Payments:  paymentsRepo,
		Agents:    agentsRepo,
		Records:   recordsRepo,
		Outbox:    outboxService,
		Disburser: commissionService,
		Metrics:   webhookMetrics,
		Logger:    logg,
	})

	checkoutService := payments.NewService(payments.ServiceParams{
		Payments: paymentsRepo,
		Plans:    plansRepo,
		Records:  recordsRepo,
		Gateway:  curlecClient,
		Logger:   logg,
	})

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
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:            cfg,
			Logger:            logg,
			DB:                dbClient,
			Redis:             redisClient,
			CheckoutService:   checkoutService,
			PlansRepo:         plansRepo,
			NotificationsRepo: notificationsRepo,
			ReconcileService:  reconcileService,
			WebhookVerifier:   reconcile.NewVerifier(cfg.Curlec.KeySecret, cfg.Curlec.Sandbox),
			WebhookGuard:      reconcile.NewDedupeGuard(redisClient, cfg.Curlec.WebhookTTL, logg),
			MetricsRegistry:   registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
