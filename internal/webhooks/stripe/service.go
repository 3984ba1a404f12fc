package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/luxeaccount/luxeaccount-backend/internal/analytics/types"
	"github.com/luxeaccount/luxeaccount-backend/internal/billing"
	"github.com/luxeaccount/luxeaccount-backend/internal/catalog"
	"github.com/luxeaccount/luxeaccount-backend/internal/notifications"
	"github.com/luxeaccount/luxeaccount-backend/pkg/db/models"
	"github.com/luxeaccount/luxeaccount-backend/pkg/enums"
	pkgerrors "github.com/luxeaccount/luxeaccount-backend/pkg/errors"
)

// fallback when the event carries no billing period
const defaultPeriod = 30 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentSink records settled payments in the analytics warehouse.
type PaymentSink interface {
	RecordPayment(ctx context.Context, row types.PaymentFactRow) error
}

// DunningNotifier flags failed payments for downstream notification.
type DunningNotifier interface {
	PublishPaymentFailure(ctx context.Context, failure notifications.PaymentFailure) error
}

type ServiceParams struct {
	BillingRepo       billing.Repository
	Catalog           *catalog.Catalog
	TransactionRunner txRunner
	Analytics         PaymentSink
	Dunning           DunningNotifier
}

// Service routes verified Stripe events to idempotent upsert handlers.
type Service struct {
	billingRepo billing.Repository
	catalog     *catalog.Catalog
	txRunner    txRunner
	analytics   PaymentSink
	dunning     DunningNotifier
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		billingRepo: params.BillingRepo,
		catalog:     params.Catalog,
		txRunner:    params.TransactionRunner,
		analytics:   params.Analytics,
		dunning:     params.Dunning,
	}, nil
}

// HandleEvent dispatches one verified event. Unrecognized types return nil so
// the delivery is acknowledged; Stripe adds event types over time.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		return s.handleCheckoutCompleted(ctx, &session)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.handleSubscriptionUpserted(ctx, &stripeSub)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.handleSubscriptionDeleted(ctx, &stripeSub)
	case stripe.EventTypeInvoicePaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode invoice event")
		}
		return s.handleInvoicePaymentSucceeded(ctx, event, &invoice)
	case stripe.EventTypeInvoicePaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode invoice event")
		}
		return s.handleInvoicePaymentFailed(ctx, event, &invoice)
	default:
		return nil
	}
}

// handleCheckoutCompleted upserts the subscription and the principal's
// billing customer mapping from session metadata.
func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	userID := strings.TrimSpace(session.Metadata["userId"])
	planType := strings.TrimSpace(session.Metadata["planType"])
	userEmail := strings.TrimSpace(session.Metadata["userEmail"])
	if userID == "" || planType == "" || userEmail == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session metadata incomplete").
			WithDetails(map[string]any{"sessionId": session.ID})
	}

	planKey, err := enums.ParsePlanKey(planType)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown plan in checkout metadata").
			WithDetails(map[string]any{"planType": planType})
	}

	subscriptionID := ""
	if session.Subscription != nil {
		subscriptionID = session.Subscription.ID
	}
	if subscriptionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session missing subscription reference").
			WithDetails(map[string]any{"sessionId": session.ID})
	}
	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}

	var priceID *string
	if plan, ok := s.catalog.Lookup(planKey); ok {
		priceID = &plan.PriceID
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		if customerID != "" {
			customer := &models.BillingCustomer{
				ID:               uuid.New(),
				UserID:           userID,
				UserEmail:        userEmail,
				StripeCustomerID: customerID,
			}
			if err := repo.UpsertBillingCustomer(ctx, customer); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert billing customer")
			}
		}

		stored, err := repo.FindSubscriptionByStripeID(ctx, subscriptionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
		}

		if stored == nil {
			sub := &models.Subscription{
				ID:                   uuid.New(),
				UserID:               userID,
				UserEmail:            userEmail,
				PlanKey:              planKey,
				StripeSubscriptionID: subscriptionID,
				StripeCustomerID:     customerID,
				PriceID:              priceID,
				Status:               enums.SubscriptionStatusActive,
				CurrentPeriodEnd:     time.Now().Add(defaultPeriod).UTC(),
			}
			if err := repo.CreateSubscription(ctx, sub); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist subscription")
			}
			return nil
		}

		stored.UserID = userID
		stored.UserEmail = userEmail
		stored.PlanKey = planKey
		stored.Status = enums.SubscriptionStatusActive
		if customerID != "" {
			stored.StripeCustomerID = customerID
		}
		if priceID != nil {
			stored.PriceID = priceID
		}
		if stored.CurrentPeriodEnd.IsZero() {
			stored.CurrentPeriodEnd = time.Now().Add(defaultPeriod).UTC()
		}
		if err := repo.UpdateSubscription(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription")
		}
		return nil
	})
}

// handleSubscriptionUpserted syncs status and billing period bounds.
func (s *Service) handleSubscriptionUpserted(ctx context.Context, stripeSub *stripe.Subscription) error {
	if stripeSub == nil || stripeSub.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}

	status, err := enums.ParseSubscriptionStatus(string(stripeSub.Status))
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown subscription status").
			WithDetails(map[string]any{"status": string(stripeSub.Status)})
	}

	periodStart, periodEnd := periodFromSubscription(stripeSub)
	priceID := priceIDFromSubscription(stripeSub)

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		stored, err := repo.FindSubscriptionByStripeID(ctx, stripeSub.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
		}

		if stored == nil {
			userID := strings.TrimSpace(stripeSub.Metadata["userId"])
			if userID == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "subscription metadata missing user").
					WithDetails(map[string]any{"subscriptionId": stripeSub.ID})
			}
			planKey, ok := planKeyForSubscription(s.catalog, stripeSub, priceID)
			if !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "cannot resolve plan for subscription").
					WithDetails(map[string]any{"subscriptionId": stripeSub.ID})
			}

			sub := &models.Subscription{
				ID:                   uuid.New(),
				UserID:               userID,
				UserEmail:            strings.TrimSpace(stripeSub.Metadata["userEmail"]),
				PlanKey:              planKey,
				StripeSubscriptionID: stripeSub.ID,
				StripeCustomerID:     customerIDFromSubscription(stripeSub),
				PriceID:              trimmedPtr(priceID),
				Status:               status,
				CurrentPeriodStart:   toTimePtr(periodStart),
				CurrentPeriodEnd:     periodEndOrDefault(periodEnd),
				CancelAtPeriodEnd:    stripeSub.CancelAtPeriodEnd,
				CanceledAt:           toTimePtr(stripeSub.CanceledAt),
			}
			if err := repo.CreateSubscription(ctx, sub); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist subscription")
			}
			return nil
		}

		stored.Status = status
		stored.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
		if canceledAt := toTimePtr(stripeSub.CanceledAt); canceledAt != nil {
			stored.CanceledAt = canceledAt
		}
		if periodStart != 0 {
			stored.CurrentPeriodStart = toTimePtr(periodStart)
		}
		if periodEnd != 0 {
			stored.CurrentPeriodEnd = toTime(periodEnd)
		}
		if priceID != "" {
			stored.PriceID = trimmedPtr(priceID)
			if plan, ok := s.catalog.LookupByPriceID(priceID); ok {
				stored.PlanKey = plan.Key
			}
		}
		if customerID := customerIDFromSubscription(stripeSub); customerID != "" {
			stored.StripeCustomerID = customerID
		}
		if err := repo.UpdateSubscription(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update subscription")
		}
		return nil
	})
}

// handleSubscriptionDeleted marks the stored record canceled. The cancellation
// timestamp is written once; redeliveries keep the original value.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, stripeSub *stripe.Subscription) error {
	if stripeSub == nil || stripeSub.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		stored, err := repo.FindSubscriptionByStripeID(ctx, stripeSub.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
		}
		if stored == nil {
			// nothing local to cancel; the create/update events never arrived
			return nil
		}

		stored.Status = enums.SubscriptionStatusCanceled
		stored.CancelAtPeriodEnd = false
		if stored.CanceledAt == nil {
			if canceledAt := toTimePtr(stripeSub.CanceledAt); canceledAt != nil {
				stored.CanceledAt = canceledAt
			} else {
				now := time.Now().UTC()
				stored.CanceledAt = &now
			}
		}
		if err := repo.UpdateSubscription(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist cancellation")
		}
		return nil
	})
}

// handleInvoicePaymentSucceeded upserts the Payment row keyed by invoice id
// and mirrors the fact to the analytics sink.
func (s *Service) handleInvoicePaymentSucceeded(ctx context.Context, event *stripe.Event, invoice *stripe.Invoice) error {
	if invoice == nil || invoice.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}

	subscriptionID := subscriptionIDFromInvoice(event)
	paidAt := time.Unix(event.Created, 0).UTC()

	var fact *types.PaymentFactRow
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		sub, userID, err := resolveInvoiceUser(ctx, repo, subscriptionID, invoice)
		if err != nil {
			return err
		}

		payment, err := repo.FindPaymentByInvoiceID(ctx, invoice.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
		}

		amount := decimal.New(invoice.AmountPaid, -2)
		currency := currencyFromInvoice(invoice)

		if payment == nil {
			payment = &models.Payment{
				ID:                   uuid.New(),
				UserID:               userID,
				StripeInvoiceID:      invoice.ID,
				StripeCustomerID:     customerIDFromInvoice(invoice),
				StripeSubscriptionID: subscriptionID,
				Amount:               amount,
				Currency:             currency,
				Status:               enums.PaymentStatusSucceeded,
				PaidAt:               &paidAt,
			}
			if sub != nil {
				payment.SubscriptionID = &sub.ID
			}
			if err := repo.CreatePayment(ctx, payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment")
			}
		} else {
			if payment.Status == enums.PaymentStatusSucceeded {
				// replayed delivery; the fact was already recorded
				return nil
			}
			payment.Status = enums.PaymentStatusSucceeded
			payment.Amount = amount
			payment.Currency = currency
			payment.FailureReason = nil
			if payment.PaidAt == nil {
				payment.PaidAt = &paidAt
			}
			if err := repo.UpdatePayment(ctx, payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment")
			}
		}

		fact = paymentFact(payment, sub)
		return nil
	})
	if err != nil {
		return err
	}

	if s.analytics != nil && fact != nil {
		if sinkErr := s.analytics.RecordPayment(ctx, *fact); sinkErr != nil {
			// warehouse lag must not trigger a redelivery
			return pkgerrors.Wrap(pkgerrors.CodeDependency, sinkErr, "record payment fact")
		}
	}
	return nil
}

// handleInvoicePaymentFailed records the failed payment and flags the
// subscription for dunning.
func (s *Service) handleInvoicePaymentFailed(ctx context.Context, event *stripe.Event, invoice *stripe.Invoice) error {
	if invoice == nil || invoice.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}

	subscriptionID := subscriptionIDFromInvoice(event)
	failedAt := time.Unix(event.Created, 0).UTC()
	failureReason := "payment_failed"

	var (
		failure *notifications.PaymentFailure
		fact    *types.PaymentFactRow
	)
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		sub, userID, err := resolveInvoiceUser(ctx, repo, subscriptionID, invoice)
		if err != nil {
			return err
		}

		payment, err := repo.FindPaymentByInvoiceID(ctx, invoice.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
		}

		amount := decimal.New(invoice.AmountDue, -2)
		currency := currencyFromInvoice(invoice)

		if payment == nil {
			payment = &models.Payment{
				ID:                   uuid.New(),
				UserID:               userID,
				StripeInvoiceID:      invoice.ID,
				StripeCustomerID:     customerIDFromInvoice(invoice),
				StripeSubscriptionID: subscriptionID,
				Amount:               amount,
				Currency:             currency,
				Status:               enums.PaymentStatusFailed,
				FailureReason:        &failureReason,
			}
			if sub != nil {
				payment.SubscriptionID = &sub.ID
			}
			if err := repo.CreatePayment(ctx, payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment")
			}
		} else {
			if payment.Status == enums.PaymentStatusSucceeded {
				// a late failure event never downgrades a settled payment
				return nil
			}
			payment.Status = enums.PaymentStatusFailed
			payment.FailureReason = &failureReason
			if err := repo.UpdatePayment(ctx, payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update payment")
			}
		}

		if sub != nil && (sub.Status == enums.SubscriptionStatusActive || sub.Status == enums.SubscriptionStatusTrialing) {
			sub.Status = enums.SubscriptionStatusPastDue
			if err := repo.UpdateSubscription(ctx, sub); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flag subscription past due")
			}
		}

		planKey := ""
		if sub != nil {
			planKey = sub.PlanKey.String()
		}
		failure = &notifications.PaymentFailure{
			UserID:               userID,
			InvoiceID:            invoice.ID,
			StripeCustomerID:     customerIDFromInvoice(invoice),
			StripeSubscriptionID: subscriptionID,
			PlanKey:              planKey,
			AmountCents:          invoice.AmountDue,
			Currency:             currency.String(),
			FailedAt:             failedAt,
		}
		fact = paymentFact(payment, sub)
		return nil
	})
	if err != nil {
		return err
	}

	// side effects run outside the transaction; their failures are surfaced
	// together so the controller can log them while still acking
	var sideEffects error
	if s.analytics != nil && fact != nil {
		if sinkErr := s.analytics.RecordPayment(ctx, *fact); sinkErr != nil {
			sideEffects = multierr.Append(sideEffects, pkgerrors.Wrap(pkgerrors.CodeDependency, sinkErr, "record payment fact"))
		}
	}
	if s.dunning != nil && failure != nil {
		if pubErr := s.dunning.PublishPaymentFailure(ctx, *failure); pubErr != nil {
			sideEffects = multierr.Append(sideEffects, pkgerrors.Wrap(pkgerrors.CodeDependency, pubErr, "publish dunning event"))
		}
	}
	return sideEffects
}

// resolveInvoiceUser maps the invoice back to a principal, preferring the
// stored subscription and falling back to invoice metadata.
func resolveInvoiceUser(ctx context.Context, repo billing.Repository, subscriptionID string, invoice *stripe.Invoice) (*models.Subscription, string, error) {
	if subscriptionID != "" {
		sub, err := repo.FindSubscriptionByStripeID(ctx, subscriptionID)
		if err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
		}
		if sub != nil {
			return sub, sub.UserID, nil
		}
	}
	if userID := strings.TrimSpace(invoice.Metadata["userId"]); userID != "" {
		return nil, userID, nil
	}
	return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "cannot resolve invoice principal").
		WithDetails(map[string]any{"invoiceId": invoice.ID})
}

func paymentFact(payment *models.Payment, sub *models.Subscription) *types.PaymentFactRow {
	fact := &types.PaymentFactRow{
		InvoiceID:   payment.StripeInvoiceID,
		UserID:      payment.UserID,
		AmountCents: payment.Amount.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency:    payment.Currency.String(),
		Status:      payment.Status.String(),
		PaidAt:      payment.PaidAt,
	}
	fact.StripeCustomerID = trimmedPtr(payment.StripeCustomerID)
	fact.StripeSubscriptionID = trimmedPtr(payment.StripeSubscriptionID)
	if sub != nil {
		key := sub.PlanKey.String()
		fact.PlanKey = &key
	}
	return fact
}

func subscriptionIDFromInvoice(event *stripe.Event) string {
	if event == nil {
		return ""
	}
	if id := event.GetObjectValue("subscription"); id != "" {
		return id
	}
	return event.GetObjectValue("parent", "subscription_details", "subscription")
}

func customerIDFromInvoice(invoice *stripe.Invoice) string {
	if invoice == nil || invoice.Customer == nil {
		return ""
	}
	return invoice.Customer.ID
}

func currencyFromInvoice(invoice *stripe.Invoice) enums.Currency {
	currency, err := enums.ParseCurrency(strings.ToUpper(string(invoice.Currency)))
	if err != nil {
		return enums.CurrencyUSD
	}
	return currency
}

func customerIDFromSubscription(sub *stripe.Subscription) string {
	if sub == nil || sub.Customer == nil {
		return ""
	}
	return sub.Customer.ID
}

func priceIDFromSubscription(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}

func periodFromSubscription(sub *stripe.Subscription) (int64, int64) {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return 0, 0
	}
	item := sub.Items.Data[0]
	return item.CurrentPeriodStart, item.CurrentPeriodEnd
}

func planKeyForSubscription(cat *catalog.Catalog, sub *stripe.Subscription, priceID string) (enums.PlanKey, bool) {
	if raw := strings.TrimSpace(sub.Metadata["planType"]); raw != "" {
		if key, err := enums.ParsePlanKey(raw); err == nil {
			return key, true
		}
	}
	if priceID != "" {
		if plan, ok := cat.LookupByPriceID(priceID); ok {
			return plan.Key, true
		}
	}
	return "", false
}

func periodEndOrDefault(ts int64) time.Time {
	if ts == 0 {
		return time.Now().Add(defaultPeriod).UTC()
	}
	return toTime(ts)
}

func toTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

func toTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func trimmedPtr(value string) *string {
	if s := strings.TrimSpace(value); s != "" {
		return &s
	}
	return nil
}
