package customerorders

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/response"
	"github.com/go-chi/chi/v5"
)

type service interface {
	ListCustomerOrders(ctx context.Context, email string) ([]order.Order, error)
}

// CustomerOrders returns the latest orders placed with an email address.
func CustomerOrders(w http.ResponseWriter, r *http.Request, service service) {
	orders, err := service.ListCustomerOrders(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.OK(w, map[string]any{
		"orders": response.NewAdminOrderViews(orders),
		"count":  len(orders),
	})
}
