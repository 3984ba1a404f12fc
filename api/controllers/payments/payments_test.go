package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxeaccount/luxeaccount-backend/api/middleware"
	"github.com/luxeaccount/luxeaccount-backend/internal/catalog"
	checkoutsvc "github.com/luxeaccount/luxeaccount-backend/internal/checkout"
	paymentsvc "github.com/luxeaccount/luxeaccount-backend/internal/payments"
	"github.com/luxeaccount/luxeaccount-backend/pkg/auth"
	pkgerrors "github.com/luxeaccount/luxeaccount-backend/pkg/errors"
	"github.com/luxeaccount/luxeaccount-backend/pkg/pagination"
)

type stubCheckoutService struct {
	plans         []catalog.Plan
	checkoutInput checkoutsvc.CreateCheckoutSessionInput
	checkoutErr   error
	portalErr     error
	principal     auth.Principal
}

func (s *stubCheckoutService) ListPlans(context.Context) []catalog.Plan {
	return s.plans
}

func (s *stubCheckoutService) CreateCheckoutSession(_ context.Context, principal auth.Principal, input checkoutsvc.CreateCheckoutSessionInput) (*checkoutsvc.CheckoutSessionResult, error) {
	s.principal = principal
	s.checkoutInput = input
	if s.checkoutErr != nil {
		return nil, s.checkoutErr
	}
	return &checkoutsvc.CheckoutSessionResult{SessionID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil
}

func (s *stubCheckoutService) CreatePortalSession(_ context.Context, principal auth.Principal, _ checkoutsvc.CreatePortalSessionInput) (*checkoutsvc.PortalSessionResult, error) {
	s.principal = principal
	if s.portalErr != nil {
		return nil, s.portalErr
	}
	return &checkoutsvc.PortalSessionResult{URL: "https://billing.stripe.com/p/session_1"}, nil
}

type stubPaymentsService struct {
	list   *paymentsvc.PaymentList
	view   *paymentsvc.PaymentView
	err    error
	params pagination.Params
	id     uuid.UUID
}

func (s *stubPaymentsService) ListPayments(_ context.Context, _ auth.Principal, params pagination.Params) (*paymentsvc.PaymentList, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func (s *stubPaymentsService) GetPayment(_ context.Context, _ auth.Principal, paymentID uuid.UUID) (*paymentsvc.PaymentView, error) {
	s.id = paymentID
	if s.err != nil {
		return nil, s.err
	}
	return s.view, nil
}

func authedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(middleware.WithPrincipal(req.Context(), auth.Principal{ID: "user-1", Email: "user@example.com"}))
}

func TestPlans_ReturnsCatalog(t *testing.T) {
	svc := &stubCheckoutService{plans: []catalog.Plan{{Key: "basic", Name: "Basic"}, {Key: "pro", Name: "Pro"}}}
	handler := Plans(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/plans", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body planListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Plans, 2)
	assert.Equal(t, "Basic", body.Plans[0].Name)
}

func TestCreateCheckoutSession_Success(t *testing.T) {
	svc := &stubCheckoutService{}
	handler := CreateCheckoutSession(svc, nil)

	payload := []byte(`{"priceId":"price_pro_456","planType":"pro","successUrl":"https://app.example.com/ok"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/payments/create-checkout-session", payload))

	require.Equal(t, http.StatusOK, rec.Code)
	var body checkoutSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "cs_test_1", body.SessionID)
	assert.NotEmpty(t, body.URL)
	assert.Equal(t, "user-1", svc.principal.ID)
	assert.Equal(t, "pro", svc.checkoutInput.PlanType)
	assert.Equal(t, "price_pro_456", svc.checkoutInput.PriceID)
}

func TestCreateCheckoutSession_MissingFields(t *testing.T) {
	handler := CreateCheckoutSession(&stubCheckoutService{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/payments/create-checkout-session", []byte(`{"planType":"pro"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCheckoutSession_UnknownField(t *testing.T) {
	handler := CreateCheckoutSession(&stubCheckoutService{}, nil)

	payload := []byte(`{"priceId":"p","planType":"pro","bogus":true}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/payments/create-checkout-session", payload))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCheckoutSession_ServiceErrorMapped(t *testing.T) {
	svc := &stubCheckoutService{checkoutErr: pkgerrors.New(pkgerrors.CodeDependency, "stripe rejected the request")}
	handler := CreateCheckoutSession(svc, nil)

	payload := []byte(`{"priceId":"price_pro_456","planType":"pro"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/payments/create-checkout-session", payload))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCustomerPortal_Success(t *testing.T) {
	svc := &stubCheckoutService{}
	handler := CustomerPortal(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/payments/customer-portal", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body portalSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.URL)
}

func TestCustomerPortal_NoBillingHistory(t *testing.T) {
	svc := &stubCheckoutService{portalErr: pkgerrors.New(pkgerrors.CodeStateConflict, "no billing account on file; complete a checkout first")}
	handler := CustomerPortal(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/payments/customer-portal", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListPayments_ForwardsQueryParams(t *testing.T) {
	svc := &stubPaymentsService{list: &paymentsvc.PaymentList{Payments: []paymentsvc.PaymentView{}}}
	handler := ListPayments(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/payments?limit=5&cursor=abc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, svc.params.Limit)
	assert.Equal(t, "abc", svc.params.Cursor)
}

func TestListPayments_RejectsBadLimit(t *testing.T) {
	handler := ListPayments(&stubPaymentsService{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/payments?limit=9999", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPayment_RoutesIDAndMapsErrors(t *testing.T) {
	paymentID := uuid.New()
	svc := &stubPaymentsService{view: &paymentsvc.PaymentView{ID: paymentID.String()}}

	router := chi.NewRouter()
	router.Get("/api/payments/{paymentId}", GetPayment(svc, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/payments/"+paymentID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, paymentID, svc.id)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/payments/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.err = pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another account")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/payments/"+paymentID.String(), nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	svc.err = pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/payments/"+paymentID.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
