package retrypreference

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/services/checkoutsvc"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/response"
	"github.com/go-chi/chi/v5"
)

type service interface {
	RetryIntent(ctx context.Context, orderID string) (*checkoutsvc.Result, error)
}

// RetryPreference creates a fresh payment intent for a pending order.
func RetryPreference(w http.ResponseWriter, r *http.Request, service service) {
	result, err := service.RetryIntent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.OK(w, map[string]any{
		"preferenceId":     result.PreferenceID,
		"initPoint":        result.InitPoint,
		"sandboxInitPoint": result.SandboxInitPoint,
		"order":            response.NewOrderSummary(result.Order),
	})
}
