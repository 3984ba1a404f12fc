package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxeaccount/luxeaccount-backend/api/routes"
	"github.com/luxeaccount/luxeaccount-backend/internal/analytics/writer"
	"github.com/luxeaccount/luxeaccount-backend/internal/billing"
	"github.com/luxeaccount/luxeaccount-backend/internal/catalog"
	"github.com/luxeaccount/luxeaccount-backend/internal/checkout"
	"github.com/luxeaccount/luxeaccount-backend/internal/notifications"
	"github.com/luxeaccount/luxeaccount-backend/internal/payments"
	stripewebhook "github.com/luxeaccount/luxeaccount-backend/internal/webhooks/stripe"
	"github.com/luxeaccount/luxeaccount-backend/pkg/bigquery"
	"github.com/luxeaccount/luxeaccount-backend/pkg/config"
	"github.com/luxeaccount/luxeaccount-backend/pkg/db"
	"github.com/luxeaccount/luxeaccount-backend/pkg/logger"
	"github.com/luxeaccount/luxeaccount-backend/pkg/metrics"
	"github.com/luxeaccount/luxeaccount-backend/pkg/migrate"
	"github.com/luxeaccount/luxeaccount-backend/pkg/pubsub"
	"github.com/luxeaccount/luxeaccount-backend/pkg/redis"
	"github.com/luxeaccount/luxeaccount-backend/pkg/stripe"
)

const webhookIdempotencyScope = "stripe-webhook"

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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	planCatalog, err := catalog.New(cfg.Plans)
	if err != nil {
		logg.Error(context.Background(), "failed to build plan catalog", err)
		os.Exit(1)
	}

	billingRepo := billing.NewRepository(dbClient.DB())
	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Catalog:     planCatalog,
		BillingRepo: billingRepo,
		Stripe:      checkout.NewStripeClient(stripeClient),
		Metrics:     billingMetrics,
		BaseURL:     cfg.App.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		BillingRepo: billingRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	// Analytics and dunning are optional; the webhook pipeline runs without
	// them when GCP is not configured.
	var paymentSink stripewebhook.PaymentSink
	var dunning stripewebhook.DunningNotifier

	if cfg.GCP.ProjectID != "" {
		bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()

		bqWriter, err := writer.New(bqClient, writer.Config{PaymentsTable: cfg.BigQuery.PaymentsTable})
		if err != nil {
			logg.Error(context.Background(), "failed to create analytics writer", err)
			os.Exit(1)
		}
		paymentSink = bqWriter

		if cfg.PubSub.BillingTopic != "" {
			psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
			if err != nil {
				logg.Error(context.Background(), "failed to bootstrap pubsub", err)
				os.Exit(1)
			}
			defer func() {
				if err := psClient.Close(); err != nil {
					logg.Error(context.Background(), "error closing pubsub", err)
				}
			}()

			if publisher := notifications.NewDunningPublisher(psClient); publisher != nil {
				dunning = publisher
			}
		}
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		BillingRepo:       billingRepo,
		Catalog:           planCatalog,
		TransactionRunner: dbClient,
		Analytics:         paymentSink,
		Dunning:           dunning,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.IdempotencyTTL, webhookIdempotencyScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Stripe:         stripeClient,
			Metrics:        billingMetrics,
			Checkout:       checkoutService,
			Payments:       paymentsService,
			WebhookService: webhookService,
			WebhookGuard:   webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
