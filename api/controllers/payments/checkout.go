package payments

import (
	"net/http"

	"github.com/luxeaccount/luxeaccount-backend/api/middleware"
	"github.com/luxeaccount/luxeaccount-backend/api/responses"
	"github.com/luxeaccount/luxeaccount-backend/api/validators"
	checkoutsvc "github.com/luxeaccount/luxeaccount-backend/internal/checkout"
	pkgerrors "github.com/luxeaccount/luxeaccount-backend/pkg/errors"
	"github.com/luxeaccount/luxeaccount-backend/pkg/logger"
)

type createCheckoutSessionRequest struct {
	PriceID    string `json:"priceId" validate:"required"`
	PlanType   string `json:"planType" validate:"required"`
	SuccessURL string `json:"successUrl,omitempty"`
	CancelURL  string `json:"cancelUrl,omitempty"`
	Locale     string `json:"locale,omitempty"`
}

type checkoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type portalSessionRequest struct {
	ReturnURL string `json:"returnUrl,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

type portalSessionResponse struct {
	URL string `json:"url"`
}

// CreateCheckoutSession starts a hosted checkout for the selected plan.
func CreateCheckoutSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload createCheckoutSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		principal := middleware.PrincipalFromContext(ctx)
		result, err := svc.CreateCheckoutSession(ctx, principal, checkoutsvc.CreateCheckoutSessionInput{
			PlanType:   payload.PlanType,
			PriceID:    payload.PriceID,
			SuccessURL: payload.SuccessURL,
			CancelURL:  payload.CancelURL,
			Locale:     payload.Locale,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, checkoutSessionResponse{
			SessionID: result.SessionID,
			URL:       result.URL,
		})
	}
}

// CustomerPortal opens a Stripe billing portal session for the caller.
func CustomerPortal(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload portalSessionRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		principal := middleware.PrincipalFromContext(ctx)
		result, err := svc.CreatePortalSession(ctx, principal, checkoutsvc.CreatePortalSessionInput{
			ReturnURL: payload.ReturnURL,
			Locale:    payload.Locale,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, portalSessionResponse{URL: result.URL})
	}
}
