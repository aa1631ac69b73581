package funnel

import (
	"net/http"

	"github.com/sashimarconi/checkout-backend/api/responses"
	"github.com/sashimarconi/checkout-backend/api/validators"
	funnelsvc "github.com/sashimarconi/checkout-backend/internal/funnel"
	"github.com/sashimarconi/checkout-backend/internal/orders"
	pkgerrors "github.com/sashimarconi/checkout-backend/pkg/errors"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
)

// CartUpsert handles POST /funnel/cart snapshot submissions.
func CartUpsert(svc funnelsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "funnel service unavailable"))
			return
		}

		var payload CartSnapshotRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := payload.toSnapshot()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.UpsertSnapshot(r.Context(), funnelsvc.SnapshotInput{
			Host:     r.Host,
			Snapshot: snap,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"ok": true})
	}
}

// OrderMaterialize handles POST /funnel/order submissions.
func OrderMaterialize(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var payload OrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(r.Host)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := svc.Materialize(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"order_id": orderID.String()})
	}
}
