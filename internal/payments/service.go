package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luxeaccount/luxeaccount-backend/internal/billing"
	"github.com/luxeaccount/luxeaccount-backend/pkg/auth"
	"github.com/luxeaccount/luxeaccount-backend/pkg/db/models"
	pkgerrors "github.com/luxeaccount/luxeaccount-backend/pkg/errors"
	"github.com/luxeaccount/luxeaccount-backend/pkg/pagination"
)

// Service exposes the caller's payment history.
type Service interface {
	ListPayments(ctx context.Context, principal auth.Principal, params pagination.Params) (*PaymentList, error)
	GetPayment(ctx context.Context, principal auth.Principal, paymentID uuid.UUID) (*PaymentView, error)
}

// ServiceParams groups dependencies for the payments read service.
type ServiceParams struct {
	BillingRepo billing.Repository
}

// PaymentView is the wire representation of one payment.
type PaymentView struct {
	ID                   string          `json:"id"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Status               string          `json:"status"`
	Description          *string         `json:"description,omitempty"`
	StripeInvoiceID      string          `json:"stripeInvoiceId"`
	StripeSubscriptionID string          `json:"stripeSubscriptionId,omitempty"`
	FailureReason        *string         `json:"failureReason,omitempty"`
	PaidAt               *time.Time      `json:"paidAt,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
}

// PaymentList is one page of payments plus the cursor for the next page.
type PaymentList struct {
	Payments   []PaymentView `json:"payments"`
	NextCursor *string       `json:"nextCursor,omitempty"`
}

type service struct {
	billingRepo billing.Repository
}

// NewService builds a payments read service.
func NewService(params ServiceParams) (Service, error) {
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	return &service{billingRepo: params.BillingRepo}, nil
}

// ListPayments returns the caller's payments, newest first.
func (s *service) ListPayments(ctx context.Context, principal auth.Principal, params pagination.Params) (*PaymentList, error) {
	if principal.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated principal required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor").
			WithDetails(map[string]any{"cursor": params.Cursor})
	}

	rows, next, err := s.billingRepo.ListPaymentsByUser(ctx, billing.ListPaymentsQuery{
		UserID: principal.ID,
		Limit:  params.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payments")
	}

	list := &PaymentList{Payments: make([]PaymentView, 0, len(rows))}
	for i := range rows {
		list.Payments = append(list.Payments, toPaymentView(&rows[i]))
	}
	if next != nil {
		encoded := pagination.EncodeCursor(*next)
		list.NextCursor = &encoded
	}
	return list, nil
}

// GetPayment loads one payment. Rows owned by other principals report
// forbidden rather than pretending they do not exist.
func (s *service) GetPayment(ctx context.Context, principal auth.Principal, paymentID uuid.UUID) (*PaymentView, error) {
	if principal.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated principal required")
	}

	payment, err := s.billingRepo.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	if payment.UserID != principal.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another account")
	}

	view := toPaymentView(payment)
	return &view, nil
}

func toPaymentView(payment *models.Payment) PaymentView {
	return PaymentView{
		ID:                   payment.ID.String(),
		Amount:               payment.Amount,
		Currency:             payment.Currency.String(),
		Status:               payment.Status.String(),
		Description:          payment.Description,
		StripeInvoiceID:      payment.StripeInvoiceID,
		StripeSubscriptionID: payment.StripeSubscriptionID,
		FailureReason:        payment.FailureReason,
		PaidAt:               payment.PaidAt,
		CreatedAt:            payment.CreatedAt,
	}
}
