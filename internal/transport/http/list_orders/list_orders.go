package listorders

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/response"
	"github.com/gorilla/schema"
)

type service interface {
	ListOrders(ctx context.Context, filter ordersvc.ListFilter) ([]order.Order, int64, error)
}

type queryOrdersRequest struct {
	Status string `schema:"status,omitempty"`
	Email  string `schema:"email,omitempty"`
	Page   int    `schema:"page,omitempty"`
	Limit  int    `schema:"limit,omitempty"`
}

func (q *queryOrdersRequest) ToModel() ordersvc.ListFilter {
	return ordersvc.ListFilter{
		Status: q.Status,
		Email:  q.Email,
		Page:   q.Page,
		Limit:  q.Limit,
	}
}

type pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	query := &queryOrdersRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid query parameters")
		slog.ErrorContext(r.Context(), "Error decoding request", "error", err)

		return
	}

	filter := query.ToModel()
	orders, total, err := service.ListOrders(r.Context(), filter)
	if err != nil {
		response.Error(w, r, err)

		return
	}

	page, limit := filter.Normalize()
	pages := (total + int64(limit) - 1) / int64(limit)

	response.OK(w, map[string]any{
		"orders": response.NewAdminOrderViews(orders),
		"pagination": pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	})
}
