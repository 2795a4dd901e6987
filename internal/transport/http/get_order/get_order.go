package getorder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/response"
	"github.com/go-chi/chi/v5"
)

type service interface {
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*order.Order, error)
}

// GetOrder returns the public view of an order.
func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
	o, err := service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.OK(w, map[string]any{"order": response.NewOrderView(o)})
}

// GetAdminOrder returns the full view of an order.
func GetAdminOrder(w http.ResponseWriter, r *http.Request, service service) {
	o, err := service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.OK(w, map[string]any{"order": response.NewAdminOrderView(o)})
}

// GetOrderByNumber returns the full view of an order looked up by its human-readable number.
func GetOrderByNumber(w http.ResponseWriter, r *http.Request, service service) {
	o, err := service.GetOrderByNumber(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.OK(w, map[string]any{"order": response.NewAdminOrderView(o)})
}
