package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/luxeaccount/luxeaccount-backend/internal/billing"
	"github.com/luxeaccount/luxeaccount-backend/internal/catalog"
	"github.com/luxeaccount/luxeaccount-backend/pkg/auth"
	"github.com/luxeaccount/luxeaccount-backend/pkg/config"
	"github.com/luxeaccount/luxeaccount-backend/pkg/db/models"
	"github.com/luxeaccount/luxeaccount-backend/pkg/enums"
	pkgerrors "github.com/luxeaccount/luxeaccount-backend/pkg/errors"
	"github.com/luxeaccount/luxeaccount-backend/pkg/pagination"
)

type stubStripeClient struct {
	checkoutCalls  int
	portalCalls    int
	checkoutParams *stripe.CheckoutSessionParams
	portalParams   *stripe.BillingPortalSessionParams
	checkoutErrs   []error
	portalErr      error
}

func (s *stubStripeClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.checkoutCalls++
	s.checkoutParams = params
	if len(s.checkoutErrs) > 0 {
		err := s.checkoutErrs[0]
		s.checkoutErrs = s.checkoutErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &stripe.CheckoutSession{
		ID:  "cs_test_123",
		URL: "https://checkout.stripe.com/c/pay/cs_test_123",
	}, nil
}

func (s *stubStripeClient) CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	s.portalCalls++
	s.portalParams = params
	if s.portalErr != nil {
		return nil, s.portalErr
	}
	return &stripe.BillingPortalSession{
		URL: "https://billing.stripe.com/p/session/test",
	}, nil
}

type stubBillingRepo struct {
	customers     map[string]*models.BillingCustomer
	subscriptions map[string]*models.Subscription
	upserts       int
}

func newStubBillingRepo() *stubBillingRepo {
	return &stubBillingRepo{
		customers:     map[string]*models.BillingCustomer{},
		subscriptions: map[string]*models.Subscription{},
	}
}

func (s *stubBillingRepo) WithTx(tx *gorm.DB) billing.Repository { return s }

func (s *stubBillingRepo) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	s.subscriptions[sub.UserID] = sub
	return nil
}

func (s *stubBillingRepo) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	s.subscriptions[sub.UserID] = sub
	return nil
}

func (s *stubBillingRepo) FindSubscriptionByStripeID(ctx context.Context, id string) (*models.Subscription, error) {
	for _, sub := range s.subscriptions {
		if sub.StripeSubscriptionID == id {
			return sub, nil
		}
	}
	return nil, nil
}

func (s *stubBillingRepo) FindLatestSubscriptionByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	return s.subscriptions[userID], nil
}

func (s *stubBillingRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return nil
}

func (s *stubBillingRepo) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return nil
}

func (s *stubBillingRepo) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return nil, nil
}

func (s *stubBillingRepo) FindPaymentByInvoiceID(ctx context.Context, id string) (*models.Payment, error) {
	return nil, nil
}

func (s *stubBillingRepo) ListPaymentsByUser(ctx context.Context, params billing.ListPaymentsQuery) ([]models.Payment, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (s *stubBillingRepo) UpsertBillingCustomer(ctx context.Context, customer *models.BillingCustomer) error {
	s.upserts++
	s.customers[customer.UserID] = customer
	return nil
}

func (s *stubBillingRepo) FindBillingCustomerByUser(ctx context.Context, userID string) (*models.BillingCustomer, error) {
	return s.customers[userID], nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(config.PlansConfig{
		BasicPriceID:      "price_basic_123",
		ProPriceID:        "price_pro_456",
		EnterprisePriceID: "price_ent_789",
	})
	require.NoError(t, err)
	return cat
}

func newTestService(t *testing.T, client *stubStripeClient, repo *stubBillingRepo) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Catalog:     testCatalog(t),
		BillingRepo: repo,
		Stripe:      client,
		BaseURL:     "https://luxeaccount.dev",
	})
	require.NoError(t, err)
	return svc
}

func testPrincipal() auth.Principal {
	return auth.Principal{ID: "u1", Email: "a@b.com"}
}

func TestCreateCheckoutSessionSuccess(t *testing.T) {
	client := &stubStripeClient{}
	svc := newTestService(t, client, newStubBillingRepo())

	result, err := svc.CreateCheckoutSession(context.Background(), testPrincipal(), CreateCheckoutSessionInput{
		PlanType: "pro",
		PriceID:  "price_pro_456",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
	assert.NotEmpty(t, result.URL)
	assert.Equal(t, 1, client.checkoutCalls)

	params := client.checkoutParams
	require.NotNil(t, params)
	assert.Equal(t, "u1", params.Metadata["userId"])
	assert.Equal(t, "pro", params.Metadata["planType"])
	assert.Equal(t, "a@b.com", params.Metadata["userEmail"])
	assert.Equal(t, string(stripe.CheckoutSessionModeSubscription), *params.Mode)
	require.Len(t, params.LineItems, 1)
	assert.Equal(t, "price_pro_456", *params.LineItems[0].Price)
	assert.Equal(t, "a@b.com", *params.CustomerEmail)

	require.NotNil(t, params.SubscriptionData)
	assert.Equal(t, "u1", params.SubscriptionData.Metadata["userId"])
	assert.Equal(t, "pro", params.SubscriptionData.Metadata["planType"])
}

func TestCreateCheckoutSessionDefaultRedirects(t *testing.T) {
	client := &stubStripeClient{}
	svc := newTestService(t, client, newStubBillingRepo())

	_, err := svc.CreateCheckoutSession(context.Background(), testPrincipal(), CreateCheckoutSessionInput{
		PlanType: "basic",
		PriceID:  "price_basic_123",
		Locale:   "fr",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://luxeaccount.dev/fr/account?checkout=success", *client.checkoutParams.SuccessURL)
	assert.Equal(t, "https://luxeaccount.dev/fr/account?checkout=canceled", *client.checkoutParams.CancelURL)
}

func TestCreateCheckoutSessionRejectsPriceMismatch(t *testing.T) {
	client := &stubStripeClient{}
	svc := newTestService(t, client, newStubBillingRepo())

	// pro plan submitted with the enterprise price ref
	_, err := svc.CreateCheckoutSession(context.Background(), testPrincipal(), CreateCheckoutSessionInput{
		PlanType: "pro",
		PriceID:  "price_ent_789",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Equal(t, 0, client.checkoutCalls)
}

func TestCreateCheckoutSessionRejectsUnknownPlan(t *testing.T) {
	client := &stubStripeClient{}
	svc := newTestService(t, client, newStubBillingRepo())

	_, err := svc.CreateCheckoutSession(context.Background(), testPrincipal(), CreateCheckoutSessionInput{
		PlanType: "platinum",
		PriceID:  "price_pro_456",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Equal(t, 0, client.checkoutCalls)
}

func TestCreateCheckoutSessionRequiresPrincipal(t *testing.T) {
	for _, key := range enums.PlanKeys {
		client := &stubStripeClient{}
		svc := newTestService(t, client, newStubBillingRepo())

		_, err := svc.CreateCheckoutSession(context.Background(), auth.Principal{}, CreateCheckoutSessionInput{
			PlanType: key.String(),
			PriceID:  "price_pro_456",
		})
		require.Error(t, err, "plan %s", key)
		assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
		assert.Equal(t, 0, client.checkoutCalls)
	}
}

func TestCreateCheckoutSessionRejectsRelativeRedirect(t *testing.T) {
	client := &stubStripeClient{}
	svc := newTestService(t, client, newStubBillingRepo())

	_, err := svc.CreateCheckoutSession(context.Background(), testPrincipal(), CreateCheckoutSessionInput{
		PlanType:   "pro",
		PriceID:    "price_pro_456",
		SuccessURL: "/relative/path",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Equal(t, 0, client.checkoutCalls)
}

func TestCreateCheckoutSessionRetriesTransientErrors(t *testing.T) {
	transient := &stripe.Error{HTTPStatusCode: 503, Msg: "service unavailable"}
	client := &stubStripeClient{checkoutErrs: []error{transient, transient}}
	svc := newTestService(t, client, newStubBillingRepo())

	result, err := svc.CreateCheckoutSession(context.Background(), testPrincipal(), CreateCheckoutSessionInput{
		PlanType: "pro",
		PriceID:  "price_pro_456",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, client.checkoutCalls)
	assert.NotEmpty(t, result.SessionID)
}

func TestCreateCheckoutSessionDoesNotRetryClientErrors(t *testing.T) {
	invalid := &stripe.Error{HTTPStatusCode: 400, Msg: "no such price", Code: stripe.ErrorCodeResourceMissing}
	client := &stubStripeClient{checkoutErrs: []error{invalid}}
	svc := newTestService(t, client, newStubBillingRepo())

	_, err := svc.CreateCheckoutSession(context.Background(), testPrincipal(), CreateCheckoutSessionInput{
		PlanType: "pro",
		PriceID:  "price_pro_456",
	})
	require.Error(t, err)
	assert.Equal(t, 1, client.checkoutCalls)

	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	assert.Equal(t, pkgerrors.CodeDependency, coded.Code())
	assert.Contains(t, coded.Message(), "no such price")
}

func TestCreatePortalSessionUsesPersistedCustomer(t *testing.T) {
	client := &stubStripeClient{}
	repo := newStubBillingRepo()
	repo.customers["u1"] = &models.BillingCustomer{
		UserID:           "u1",
		StripeCustomerID: "cus_123",
	}
	svc := newTestService(t, client, repo)

	result, err := svc.CreatePortalSession(context.Background(), testPrincipal(), CreatePortalSessionInput{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.URL)
	assert.Equal(t, 1, client.portalCalls)
	assert.Equal(t, "cus_123", *client.portalParams.Customer)
	assert.Equal(t, "https://luxeaccount.dev/en/account", *client.portalParams.ReturnURL)
}

func TestCreatePortalSessionBackfillsFromSubscription(t *testing.T) {
	client := &stubStripeClient{}
	repo := newStubBillingRepo()
	repo.subscriptions["u1"] = &models.Subscription{
		UserID:               "u1",
		StripeSubscriptionID: "sub_1",
		StripeCustomerID:     "cus_legacy",
	}
	svc := newTestService(t, client, repo)

	result, err := svc.CreatePortalSession(context.Background(), testPrincipal(), CreatePortalSessionInput{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.URL)
	assert.Equal(t, "cus_legacy", *client.portalParams.Customer)
	assert.Equal(t, 1, repo.upserts)
}

func TestCreatePortalSessionRejectsWithoutBillingHistory(t *testing.T) {
	client := &stubStripeClient{}
	svc := newTestService(t, client, newStubBillingRepo())

	_, err := svc.CreatePortalSession(context.Background(), testPrincipal(), CreatePortalSessionInput{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Equal(t, 0, client.portalCalls)
}

func TestCreatePortalSessionRequiresPrincipal(t *testing.T) {
	client := &stubStripeClient{}
	svc := newTestService(t, client, newStubBillingRepo())

	_, err := svc.CreatePortalSession(context.Background(), auth.Principal{}, CreatePortalSessionInput{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestListPlansOrder(t *testing.T) {
	svc := newTestService(t, &stubStripeClient{}, newStubBillingRepo())

	plans := svc.ListPlans(context.Background())
	require.Len(t, plans, 3)
	assert.Equal(t, enums.PlanKeyBasic, plans[0].Key)
	assert.Equal(t, enums.PlanKeyPro, plans[1].Key)
	assert.Equal(t, enums.PlanKeyEnterprise, plans[2].Key)
}
