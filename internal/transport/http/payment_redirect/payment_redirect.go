package paymentredirect

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/services/paymentsvc"
)

type service interface {
	ReconcileRedirect(ctx context.Context, kind paymentsvc.RedirectKind, paymentID, externalRef string) string
}

// NewHandler returns the handler for the gateway back URL of kind.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func NewHandler(kind paymentsvc.RedirectKind, service service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		paymentID := q.Get("payment_id")
		if paymentID == "" {
			paymentID = q.Get("collection_id")
		}

		target := service.ReconcileRedirect(r.Context(), kind, paymentID, q.Get("external_reference"))
		http.Redirect(w, r, target, http.StatusFound)
	}
}
