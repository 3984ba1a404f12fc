package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxeaccount/luxeaccount-backend/api/controllers"
	paymentcontrollers "github.com/luxeaccount/luxeaccount-backend/api/controllers/payments"
	webhookcontrollers "github.com/luxeaccount/luxeaccount-backend/api/controllers/webhooks"
	"github.com/luxeaccount/luxeaccount-backend/api/middleware"
	checkoutsvc "github.com/luxeaccount/luxeaccount-backend/internal/checkout"
	paymentsvc "github.com/luxeaccount/luxeaccount-backend/internal/payments"
	stripewebhook "github.com/luxeaccount/luxeaccount-backend/internal/webhooks/stripe"
	"github.com/luxeaccount/luxeaccount-backend/pkg/config"
	"github.com/luxeaccount/luxeaccount-backend/pkg/logger"
	"github.com/luxeaccount/luxeaccount-backend/pkg/metrics"
	"github.com/luxeaccount/luxeaccount-backend/pkg/redis"
	"github.com/luxeaccount/luxeaccount-backend/pkg/stripe"
)

// Deps carries everything the HTTP surface needs. Optional entries may be
// nil; routes that depend on them degrade to 500 instead of failing boot.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             controllers.Pinger
	Redis          *redis.Client
	Stripe         *stripe.Client
	Metrics        *metrics.BillingMetrics
	Checkout       checkoutsvc.Service
	Payments       paymentsvc.Service
	WebhookService *stripewebhook.Service
	WebhookGuard   *stripewebhook.IdempotencyGuard
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
	)

	checkoutLimiter := func(next http.Handler) http.Handler { return next }
	if deps.Redis != nil {
		checkoutPolicy := middleware.NewRateLimitPolicy(
			"checkout",
			cfg.RateLimit.CheckoutWindow,
			cfg.RateLimit.CheckoutIPLimit,
			cfg.RateLimit.CheckoutUserLimit,
		)
		checkoutLimiter = middleware.RateLimit(checkoutPolicy, deps.Redis, logg)
	}

	pingers := map[string]controllers.Pinger{"database": deps.DB}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/payments", func(r chi.Router) {
		r.Get("/plans", paymentcontrollers.Plans(deps.Checkout, logg))
		r.Post("/webhook", webhookcontrollers.StripeWebhook(deps.WebhookService, deps.Stripe, deps.WebhookGuard, deps.Metrics, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.With(checkoutLimiter).
				Post("/create-checkout-session", paymentcontrollers.CreateCheckoutSession(deps.Checkout, logg))
			r.With(checkoutLimiter).
				Post("/customer-portal", paymentcontrollers.CustomerPortal(deps.Checkout, logg))
			r.Get("/", paymentcontrollers.ListPayments(deps.Payments, logg))
			r.Get("/{paymentId}", paymentcontrollers.GetPayment(deps.Payments, logg))
		})
	})

	return r
}
