package payments

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/luxeaccount/luxeaccount-backend/api/middleware"
	"github.com/luxeaccount/luxeaccount-backend/api/responses"
	"github.com/luxeaccount/luxeaccount-backend/api/validators"
	paymentsvc "github.com/luxeaccount/luxeaccount-backend/internal/payments"
	pkgerrors "github.com/luxeaccount/luxeaccount-backend/pkg/errors"
	"github.com/luxeaccount/luxeaccount-backend/pkg/logger"
	"github.com/luxeaccount/luxeaccount-backend/pkg/pagination"
)

// ListPayments returns one page of the caller's payment history.
func ListPayments(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		principal := middleware.PrincipalFromContext(ctx)
		list, err := svc.ListPayments(ctx, principal, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// GetPayment returns a single payment owned by the caller.
func GetPayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "paymentId"))
		paymentID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment id must be a uuid"))
			return
		}

		principal := middleware.PrincipalFromContext(ctx)
		payment, err := svc.GetPayment(ctx, principal, paymentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, payment)
	}
}
