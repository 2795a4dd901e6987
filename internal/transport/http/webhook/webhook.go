package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/services/paymentsvc"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/response"
)

type service interface {
	ReconcileWebhook(ctx context.Context, n paymentsvc.Notification) (*paymentsvc.Outcome, error)
}

// id accepts the payment id as a JSON string or number.
type id string

func (i *id) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = id(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*i = id(n.String())

	return nil
}

type notificationRequest struct {
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Action string `json:"action"`
	Data   struct {
		ID id `json:"id"`
	} `json:"data"`
}

// toModel fills gaps from the query string, where older notification formats put the fields.
func (n *notificationRequest) toModel(r *http.Request) paymentsvc.Notification {
	q := r.URL.Query()

	typ := n.Type
	if typ == "" {
		typ = n.Topic
	}
	if typ == "" {
		typ = q.Get("type")
	}
	if typ == "" {
		typ = q.Get("topic")
	}

	dataID := string(n.Data.ID)
	if dataID == "" {
		dataID = q.Get("data.id")
	}
	if dataID == "" {
		dataID = q.Get("id")
	}

	return paymentsvc.Notification{
		Type:   typ,
		Action: n.Action,
		DataID: dataID,
	}
}

// Webhook handles a payment gateway notification.
func Webhook(w http.ResponseWriter, r *http.Request, service service) {
	req := notificationRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Fail(w, http.StatusBadRequest, "invalid notification body")
		slog.ErrorContext(r.Context(), "Error decoding webhook body", "error", err)

		return
	}

	n := req.toModel(r)
	slog.InfoContext(r.Context(), "Webhook received", "type", n.Type, "action", n.Action, "payment_id", n.DataID)

	outcome, err := service.ReconcileWebhook(r.Context(), n)
	if err != nil {
		response.Error(w, r, err)

		return
	}

	fields := map[string]any{}
	if outcome.Order != nil {
		fields["orderId"] = outcome.Order.ID
		fields["applied"] = outcome.Applied
	}
	response.OK(w, fields)
}
