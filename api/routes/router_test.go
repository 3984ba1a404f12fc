package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxeaccount/luxeaccount-backend/internal/catalog"
	checkoutsvc "github.com/luxeaccount/luxeaccount-backend/internal/checkout"
	paymentsvc "github.com/luxeaccount/luxeaccount-backend/internal/payments"
	"github.com/luxeaccount/luxeaccount-backend/pkg/auth"
	"github.com/luxeaccount/luxeaccount-backend/pkg/config"
	"github.com/luxeaccount/luxeaccount-backend/pkg/enums"
	"github.com/luxeaccount/luxeaccount-backend/pkg/logger"
	"github.com/luxeaccount/luxeaccount-backend/pkg/pagination"
)

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(context.Context) error {
	return s.err
}

type routerCheckoutService struct {
	plans []catalog.Plan
}

func (s *routerCheckoutService) ListPlans(context.Context) []catalog.Plan {
	return s.plans
}

func (s *routerCheckoutService) CreateCheckoutSession(context.Context, auth.Principal, checkoutsvc.CreateCheckoutSessionInput) (*checkoutsvc.CheckoutSessionResult, error) {
	return &checkoutsvc.CheckoutSessionResult{SessionID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil
}

func (s *routerCheckoutService) CreatePortalSession(context.Context, auth.Principal, checkoutsvc.CreatePortalSessionInput) (*checkoutsvc.PortalSessionResult, error) {
	return &checkoutsvc.PortalSessionResult{URL: "https://billing.stripe.com/p/session_1"}, nil
}

type routerPaymentsService struct{}

func (s *routerPaymentsService) ListPayments(context.Context, auth.Principal, pagination.Params) (*paymentsvc.PaymentList, error) {
	return &paymentsvc.PaymentList{Payments: []paymentsvc.PaymentView{}}, nil
}

func (s *routerPaymentsService) GetPayment(_ context.Context, _ auth.Principal, paymentID uuid.UUID) (*paymentsvc.PaymentView, error) {
	return &paymentsvc.PaymentView{ID: paymentID.String()}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Env:     "test",
			Port:    "0",
			BaseURL: "http://localhost:3000",
		},
		JWT: config.JWTConfig{
			Secret: "router-test-secret",
			Issuer: "luxeaccount-auth",
		},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})

	return NewRouter(Deps{
		Config: testConfig(),
		Logger: logg,
		DB:     &stubPinger{},
		Checkout: &routerCheckoutService{plans: []catalog.Plan{
			{Key: enums.PlanKeyBasic, Name: "Basic", PriceID: "price_basic_123"},
		}},
		Payments: &routerPaymentsService{},
	})
}

func buildToken(t *testing.T, secret string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   "user-1",
		"email": "member@example.com",
		"iss":   "luxeaccount-auth",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestRouterHealthLive(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-LuxeAccount-Env"))
}

func TestRouterHealthReady(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterPlansIsPublic(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/plans", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Plans []catalog.Plan `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Plans, 1)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterProtectedRoutesRejectMissingToken(t *testing.T) {
	router := newTestRouter(t)

	protected := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/payments/create-checkout-session"},
		{http.MethodPost, "/api/payments/customer-portal"},
		{http.MethodGet, "/api/payments"},
		{http.MethodGet, "/api/payments/" + uuid.NewString()},
	}

	for _, route := range protected {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(route.method, route.target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.target)
	}
}

func TestRouterProtectedRoutesRejectForgedToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/payments", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, "not-the-real-secret"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterListPaymentsWithValidToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/payments", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, "router-test-secret"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Payments []paymentsvc.PaymentView `json:"payments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Payments)
}

func TestRouterGetPaymentWithValidToken(t *testing.T) {
	router := newTestRouter(t)

	paymentID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/payments/"+paymentID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, "router-test-secret"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body paymentsvc.PaymentView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, paymentID.String(), body.ID)
}

func TestRouterWebhookRouteWiredWithoutStripeConfig(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/payments/webhook", nil))

	// Route exists; with no webhook service configured it fails closed.
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
