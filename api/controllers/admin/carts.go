package admin

import (
	"net/http"

	"github.com/sashimarconi/checkout-backend/api/responses"
	"github.com/sashimarconi/checkout-backend/api/validators"
	"github.com/sashimarconi/checkout-backend/internal/funnel"
	pkgerrors "github.com/sashimarconi/checkout-backend/pkg/errors"
	"github.com/sashimarconi/checkout-backend/pkg/logger"
)

// CartList returns the merchant's funnel carts, most recently active first.
func CartList(repo funnel.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart repository unavailable"))
			return
		}

		ownerID, err := ownerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultPageLimit, 1, maxPageLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := repo.ListByOwner(r.Context(), ownerID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing carts"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"carts": records})
	}
}
