package checkout

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stripe/stripe-go/v84"

	"github.com/luxeaccount/luxeaccount-backend/internal/billing"
	"github.com/luxeaccount/luxeaccount-backend/internal/catalog"
	"github.com/luxeaccount/luxeaccount-backend/pkg/auth"
	"github.com/luxeaccount/luxeaccount-backend/pkg/db/models"
	"github.com/luxeaccount/luxeaccount-backend/pkg/enums"
	pkgerrors "github.com/luxeaccount/luxeaccount-backend/pkg/errors"
	"github.com/luxeaccount/luxeaccount-backend/pkg/metrics"
)

const (
	defaultLocale       = "en"
	retryInitialBackoff = 200 * time.Millisecond
	retryMaxAttempts    = 2
)

// Service drives checkout and customer portal session creation.
type Service interface {
	ListPlans(ctx context.Context) []catalog.Plan
	CreateCheckoutSession(ctx context.Context, principal auth.Principal, input CreateCheckoutSessionInput) (*CheckoutSessionResult, error)
	CreatePortalSession(ctx context.Context, principal auth.Principal, input CreatePortalSessionInput) (*PortalSessionResult, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Catalog     *catalog.Catalog
	BillingRepo billing.Repository
	Stripe      StripeCheckoutClient
	Metrics     *metrics.BillingMetrics
	BaseURL     string
}

// CreateCheckoutSessionInput captures a client plan selection.
type CreateCheckoutSessionInput struct {
	PlanType   string
	PriceID    string
	SuccessURL string
	CancelURL  string
	Locale     string
}

// CreatePortalSessionInput configures a customer portal redirect.
type CreatePortalSessionInput struct {
	ReturnURL string
	Locale    string
}

// CheckoutSessionResult carries the processor's session handle back to the UI.
type CheckoutSessionResult struct {
	SessionID string
	URL       string
}

// PortalSessionResult carries the portal redirect target.
type PortalSessionResult struct {
	URL string
}

type service struct {
	catalog     *catalog.Catalog
	billingRepo billing.Repository
	stripe      StripeCheckoutClient
	metrics     *metrics.BillingMetrics
	baseURL     string
}

// NewService builds a checkout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if strings.TrimSpace(params.BaseURL) == "" {
		return nil, fmt.Errorf("base url required")
	}
	return &service{
		catalog:     params.Catalog,
		billingRepo: params.BillingRepo,
		stripe:      params.Stripe,
		metrics:     params.Metrics,
		baseURL:     strings.TrimRight(strings.TrimSpace(params.BaseURL), "/"),
	}, nil
}

// ListPlans enumerates the catalog for public consumption.
func (s *service) ListPlans(ctx context.Context) []catalog.Plan {
	return s.catalog.List()
}

// CreateCheckoutSession validates the plan selection and asks Stripe for a
// hosted checkout session. Validation failures never reach Stripe.
func (s *service) CreateCheckoutSession(ctx context.Context, principal auth.Principal, input CreateCheckoutSessionInput) (*CheckoutSessionResult, error) {
	if principal.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	planKey, err := enums.ParsePlanKey(strings.TrimSpace(input.PlanType))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown plan").
			WithDetails(map[string]any{"planType": input.PlanType})
	}

	plan, ok := s.catalog.Lookup(planKey)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown plan").
			WithDetails(map[string]any{"planType": input.PlanType})
	}

	if strings.TrimSpace(input.PriceID) != plan.PriceID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price does not match selected plan").
			WithDetails(map[string]any{"planType": planKey.String()})
	}

	successURL, err := s.resolveRedirect(input.SuccessURL, input.Locale, "/account?checkout=success")
	if err != nil {
		return nil, err
	}
	cancelURL, err := s.resolveRedirect(input.CancelURL, input.Locale, "/account?checkout=canceled")
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	if principal.Email != "" {
		params.CustomerEmail = stripe.String(principal.Email)
	}
	params.AddMetadata("userId", principal.ID)
	params.AddMetadata("planType", planKey.String())
	params.AddMetadata("userEmail", principal.Email)
	// mirrored onto the subscription so later webhook events can correlate
	// back to the principal without a session lookup
	params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
		Metadata: map[string]string{
			"userId":    principal.ID,
			"planType":  planKey.String(),
			"userEmail": principal.Email,
		},
	}

	session, err := s.createSessionWithRetry(ctx, params)
	if err != nil {
		return nil, wrapStripeError(err, "create checkout session")
	}

	s.metrics.IncCheckoutSession(planKey.String())

	return &CheckoutSessionResult{
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

// CreatePortalSession resolves the principal's Stripe customer and opens a
// billing portal session. Principals with no billing history are rejected.
func (s *service) CreatePortalSession(ctx context.Context, principal auth.Principal, input CreatePortalSessionInput) (*PortalSessionResult, error) {
	if principal.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	customerID, err := s.resolveStripeCustomer(ctx, principal)
	if err != nil {
		return nil, err
	}

	returnURL, err := s.resolveRedirect(input.ReturnURL, input.Locale, "/account")
	if err != nil {
		return nil, err
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}

	session, err := s.stripe.CreatePortalSession(ctx, params)
	if err != nil {
		return nil, wrapStripeError(err, "create portal session")
	}

	s.metrics.IncPortalSession()

	return &PortalSessionResult{URL: session.URL}, nil
}

// resolveStripeCustomer prefers the persisted billing customer mapping and
// falls back to the latest subscription, backfilling the mapping when found.
func (s *service) resolveStripeCustomer(ctx context.Context, principal auth.Principal) (string, error) {
	customer, err := s.billingRepo.FindBillingCustomerByUser(ctx, principal.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load billing customer")
	}
	if customer != nil && customer.StripeCustomerID != "" {
		return customer.StripeCustomerID, nil
	}

	sub, err := s.billingRepo.FindLatestSubscriptionByUser(ctx, principal.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub == nil || sub.StripeCustomerID == "" {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "no billing account on file; complete a checkout first")
	}

	backfill := &models.BillingCustomer{
		UserID:           principal.ID,
		UserEmail:        principal.Email,
		StripeCustomerID: sub.StripeCustomerID,
	}
	if err := s.billingRepo.UpsertBillingCustomer(ctx, backfill); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "backfill billing customer")
	}

	return sub.StripeCustomerID, nil
}

func (s *service) createSessionWithRetry(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	var session *stripe.CheckoutSession

	backoff := retry.WithMaxRetries(retryMaxAttempts, retry.NewExponential(retryInitialBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		created, err := s.stripe.CreateCheckoutSession(ctx, params)
		if err != nil {
			if isTransientStripeError(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		session = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// resolveRedirect validates a caller-supplied URL or derives a locale-aware
// default from the configured base URL.
func (s *service) resolveRedirect(raw, locale, fallbackPath string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		loc := strings.TrimSpace(locale)
		if loc == "" {
			loc = defaultLocale
		}
		return s.baseURL + "/" + loc + fallbackPath, nil
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "redirect url must be absolute").
			WithDetails(map[string]any{"url": raw})
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "redirect url must use http or https").
			WithDetails(map[string]any{"url": raw})
	}
	return trimmed, nil
}

func isTransientStripeError(err error) bool {
	var stripeErr *stripe.Error
	if stderrors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 0
	}
	// non-API errors are treated as network failures
	return true
}

// wrapStripeError preserves the processor's message and status code.
func wrapStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if stderrors.As(err, &stripeErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op+": "+stripeErr.Msg).
			WithDetails(map[string]any{
				"providerStatus": stripeErr.HTTPStatusCode,
				"providerCode":   string(stripeErr.Code),
			})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
