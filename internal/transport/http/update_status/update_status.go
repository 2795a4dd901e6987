package updatestatus

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type service interface {
	UpdateStatus(ctx context.Context, id, status, notes string) (*order.Order, error)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes"`
}

// Validate validates the update status request.
func (r *updateStatusRequest) Validate() error {
	return validator.New().Struct(r)
}

// UpdateStatus moves an order to a new fulfillment status.
func UpdateStatus(w http.ResponseWriter, r *http.Request, service service) {
	req := updateStatusRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body")
		slog.ErrorContext(r.Context(), "Error decoding request body for update status", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		response.Fail(w, http.StatusBadRequest, "status is required, must be one of: "+order.JoinStatuses(order.Statuses()))

		return
	}

	o, err := service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Notes)
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.OK(w, map[string]any{
		"message": "Status updated",
		"order":   response.NewAdminOrderView(o),
	})
}
