package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/luxeaccount/luxeaccount-backend/api/responses"
	pkgerrors "github.com/luxeaccount/luxeaccount-backend/pkg/errors"
	"github.com/luxeaccount/luxeaccount-backend/pkg/logger"
	"github.com/luxeaccount/luxeaccount-backend/pkg/metrics"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

type webhookAck struct {
	Received bool `json:"received"`
}

// StripeWebhook verifies and dispatches Stripe billing events. Signature
// verification happens before anything else touches the payload. Handler
// failures are logged and still acknowledged; the idempotency marker is
// cleared so Stripe's redelivery gets a clean retry.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, m *metrics.BillingMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil || client.SigningSecret() == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook signing secret not configured"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			m.IncWebhookEvent("unknown", "bad_signature")
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify signature"))
			return
		}

		if logg != nil {
			ctx = logg.WithEventID(ctx, event.ID)
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			// treat a flaky guard as unseen; handlers are idempotent anyway
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "webhook.idempotency_check_failed")
			}
			alreadyProcessed = false
		}
		if alreadyProcessed {
			m.IncWebhookEvent(string(event.Type), "duplicate")
			responses.WriteSuccess(w, webhookAck{Received: true})
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			_ = guard.Delete(ctx, event.ID)
			m.IncWebhookEvent(string(event.Type), "error")
			if logg != nil {
				logg.Error(ctx, "webhook.handler_failed", err)
			}
			responses.WriteSuccess(w, webhookAck{Received: true})
			return
		}

		m.IncWebhookEvent(string(event.Type), "processed")
		responses.WriteSuccess(w, webhookAck{Received: true})
	}
}
