// Package response writes the JSON envelopes shared by every endpoint.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/gateway/mercadopago"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/services/checkoutsvc"
	"github.com/corray333/backend-labs/checkout/internal/service/services/paymentsvc"
	"github.com/spf13/viper"
)

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}

// OK writes {"success": true} merged with fields.
func OK(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	JSON(w, http.StatusOK, body)
}

// Fail writes a failure envelope with a client-safe message.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"success": false, "message": message})
}

// Error maps err to a status and writes it. The raw error is only exposed in development.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, message := Classify(err)

	body := map[string]any{"success": false, "message": message}
	if viper.GetString("app.env") == "development" {
		body["error"] = err.Error()
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "status", status, "error", err)
	} else {
		slog.WarnContext(r.Context(), "Request rejected", "status", status, "error", err)
	}

	JSON(w, status, body)
}

// Classify returns the HTTP status and public message for err.
func Classify(err error) (int, string) {
	var (
		validationErr *checkoutsvc.ValidationError
		gatewayErr    *mercadopago.Error
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Message
	case errors.Is(err, order.ErrInvalidStatus):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, paymentsvc.ErrMissingPaymentID):
		return http.StatusBadRequest, "payment id is required"
	case errors.Is(err, paymentsvc.ErrGatewayLookup):
		return http.StatusInternalServerError, "failed to fetch payment"
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, order.ErrIllegalTransition):
		return http.StatusConflict, "order cannot move to the requested state"
	case errors.Is(err, order.ErrVersionConflict):
		return http.StatusConflict, "order was modified concurrently, retry"
	case errors.As(err, &gatewayErr):
		if gatewayErr.IsClientError() {
			return http.StatusBadRequest, "MercadoPago error: " + gatewayErr.CauseText()
		}

		return http.StatusBadGateway, "payment gateway unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
