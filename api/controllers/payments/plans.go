package payments

import (
	"net/http"

	"github.com/luxeaccount/luxeaccount-backend/api/responses"
	"github.com/luxeaccount/luxeaccount-backend/internal/catalog"
	checkoutsvc "github.com/luxeaccount/luxeaccount-backend/internal/checkout"
	pkgerrors "github.com/luxeaccount/luxeaccount-backend/pkg/errors"
	"github.com/luxeaccount/luxeaccount-backend/pkg/logger"
)

type planListResponse struct {
	Plans []catalog.Plan `json:"plans"`
}

// Plans returns the subscription catalog. No authentication; pricing pages
// render this before the visitor signs in.
func Plans(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		responses.WriteSuccess(w, planListResponse{Plans: svc.ListPlans(ctx)})
	}
}
