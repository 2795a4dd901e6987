package createpreference

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/services/checkoutsvc"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/response"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// IdempotencyHeader lets the storefront retry a checkout without creating a second order.
const IdempotencyHeader = "X-Idempotency-Key"

// service is an interface for the service layer.
type service interface {
	CreateCheckout(ctx context.Context, cart checkoutsvc.Cart, idempotencyKey string) (*checkoutsvc.Result, error)
}

// number accepts a JSON number or a numeric string. Anything else decodes to nil.
type number struct {
	value *decimal.Decimal
}

func (n *number) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(bytes.Trim(data, `"`)))
	if raw == "" || raw == "null" {
		return nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	n.value = &d

	return nil
}

func (n number) decimalOr(def decimal.Decimal) decimal.Decimal {
	if n.value == nil {
		return def
	}

	return *n.value
}

// quantity is nil when missing, unparsable or zero so the service applies its default.
func (n number) quantity() *int {
	if n.value == nil || n.value.IsZero() {
		return nil
	}
	q := int(n.value.IntPart())

	return &q
}

type itemInCreatePreferenceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Size        string `json:"size"`
	Color       string `json:"color"`
	Price       number `json:"price"`
	Quantity    number `json:"quantity"`
}

type customerInCreatePreferenceRequest struct {
	Name    string `json:"name"    validate:"required"`
	Email   string `json:"email"   validate:"required,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	DNI     string `json:"dni"`
	Notes   string `json:"notes"`
}

type shippingInCreatePreferenceRequest struct {
	Method     string `json:"method"`
	Cost       number `json:"cost"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postalCode"`
}

type metadataInCreatePreferenceRequest struct {
	Source string `json:"source"`
}

// createPreferenceRequest represents the storefront checkout body.
type createPreferenceRequest struct {
	Items    []itemInCreatePreferenceRequest   `json:"items"    validate:"required,min=1"`
	Customer customerInCreatePreferenceRequest `json:"customer"`
	Shipping shippingInCreatePreferenceRequest `json:"shipping"`
	Discount number                            `json:"discount"`
	Notes    string                            `json:"notes"`
	Metadata metadataInCreatePreferenceRequest `json:"metadata"`
	Source   string                            `json:"source"`
}

// Validate validates the create preference request.
func (r *createPreferenceRequest) Validate() error {
	if len(r.Items) == 0 {
		return checkoutsvc.ErrEmptyCart
	}
	if err := validator.New().Struct(r); err != nil {
		return checkoutsvc.ErrIncompleteCustomer
	}

	return nil
}

// toModel converts the request into a cart for the checkout service.
func (r *createPreferenceRequest) toModel(req *http.Request) (checkoutsvc.Cart, error) {
	method, err := order.ParseShippingMethod(r.Shipping.Method)
	if err != nil {
		return checkoutsvc.Cart{}, &checkoutsvc.ValidationError{Message: err.Error()}
	}

	items := make([]checkoutsvc.CartItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = checkoutsvc.CartItem{
			Name:        it.Name,
			Description: it.Description,
			Image:       it.Image,
			Size:        it.Size,
			Color:       it.Color,
			Price:       it.Price.value,
			Quantity:    it.Quantity.quantity(),
		}
	}

	notes := r.Notes
	if notes == "" {
		notes = r.Customer.Notes
	}
	source := r.Metadata.Source
	if source == "" {
		source = r.Source
	}

	address := r.Shipping.Address
	if address == "" {
		address = r.Customer.Address
	}

	return checkoutsvc.Cart{
		Items: items,
		Customer: order.Customer{
			Name:    r.Customer.Name,
			Email:   r.Customer.Email,
			Phone:   r.Customer.Phone,
			Address: r.Customer.Address,
			DNI:     r.Customer.DNI,
		},
		Shipping: order.Shipping{
			Method:     method,
			Address:    address,
			City:       r.Shipping.City,
			Province:   r.Shipping.Province,
			PostalCode: r.Shipping.PostalCode,
		},
		ShippingCost: r.Shipping.Cost.decimalOr(decimal.Zero),
		Discount:     r.Discount.decimalOr(decimal.Zero),
		Notes:        notes,
		Source:       order.ParseSource(source),
		Metadata: map[string]any{
			"request_id": middleware.GetReqID(req.Context()),
		},
		IPAddress: clientIP(req),
		UserAgent: req.UserAgent(),
	}, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// CreatePreference handles the checkout request from the storefront.
func CreatePreference(w http.ResponseWriter, r *http.Request, service service) {
	req := createPreferenceRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid request body")
		slog.ErrorContext(r.Context(), "Error decoding request body for create preference", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		response.Error(w, r, err)

		return
	}

	cart, err := req.toModel(r)
	if err != nil {
		response.Error(w, r, err)

		return
	}

	result, err := service.CreateCheckout(r.Context(), cart, strings.TrimSpace(r.Header.Get(IdempotencyHeader)))
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
