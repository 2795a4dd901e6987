package response

import (
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
)

// ItemView is an order line as the storefront sees it.
type ItemView struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Size        string  `json:"size"`
	Color       string  `json:"color"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
}

// ShippingView is the delivery section of an order.
type ShippingView struct {
	Method         string  `json:"method"`
	Cost           float64 `json:"cost"`
	Address        string  `json:"address"`
	City           string  `json:"city"`
	Province       string  `json:"province"`
	PostalCode     string  `json:"postalCode"`
	TrackingNumber string  `json:"trackingNumber"`
}

// PaymentView is the payment section of an order.
type PaymentView struct {
	Method           string     `json:"method"`
	Status           string     `json:"status"`
	GatewayPaymentID string     `json:"gatewayPaymentId,omitempty"`
	GatewayStatus    string     `json:"gatewayStatus,omitempty"`
	StatusDetail     string     `json:"statusDetail,omitempty"`
	PaymentMethodID  string     `json:"paymentMethodId,omitempty"`
	PaymentType      string     `json:"paymentType,omitempty"`
	Installments     int        `json:"installments,omitempty"`
	PaidAmount       float64    `json:"paidAmount,omitempty"`
	Currency         string     `json:"currency"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
}

// OrderView is the public representation of an order.
type OrderView struct {
	ID               string         `json:"id"`
	OrderNumber      string         `json:"orderNumber"`
	Customer         order.Customer `json:"customer"`
	Items            []ItemView     `json:"items"`
	Shipping         ShippingView   `json:"shipping"`
	Payment          PaymentView    `json:"payment"`
	Subtotal         float64        `json:"subtotal"`
	Discount         float64        `json:"discount"`
	ShippingCost     float64        `json:"shippingCost"`
	Tax              float64        `json:"tax"`
	Total            float64        `json:"total"`
	TotalItems       int            `json:"totalItems"`
	FullAddress      string         `json:"fullAddress"`
	Status           string         `json:"status"`
	Notes            string         `json:"notes"`
	Source           string         `json:"source"`
	PreferenceID     string         `json:"preferenceId,omitempty"`
	InitPoint        string         `json:"initPoint,omitempty"`
	SandboxInitPoint string         `json:"sandboxInitPoint,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	DeliveredAt      *time.Time     `json:"deliveredAt,omitempty"`
	CancelledAt      *time.Time     `json:"cancelledAt,omitempty"`
	ExpiresAt        *time.Time     `json:"expiresAt,omitempty"`
}

// AdminOrderView adds the fields hidden from the public view.
type AdminOrderView struct {
	OrderView
	InternalNotes string         `json:"internalNotes"`
	IPAddress     string         `json:"ipAddress"`
	UserAgent     string         `json:"userAgent"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Version       int64          `json:"version"`
}

// OrderSummary is returned right after checkout.
type OrderSummary struct {
	ID          string    `json:"id"`
	OrderNumber string    `json:"orderNumber"`
	Total       float64   `json:"total"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewOrderView builds the public view of o.
func NewOrderView(o *order.Order) OrderView {
	items := make([]ItemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemView{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Image:       it.Image,
			Size:        it.Size,
			Color:       it.Color,
			Price:       it.Price.InexactFloat64(),
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal.InexactFloat64(),
		})
	}

	p := o.Payment

	return OrderView{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Customer:    o.Customer,
		Items:       items,
		Shipping: ShippingView{
			Method:         string(o.Shipping.Method),
			Cost:           o.ShippingCost.InexactFloat64(),
			Address:        o.Shipping.Address,
			City:           o.Shipping.City,
			Province:       o.Shipping.Province,
			PostalCode:     o.Shipping.PostalCode,
			TrackingNumber: o.Shipping.TrackingNumber,
		},
		Payment: PaymentView{
			Method:           string(p.Method),
			Status:           string(p.Status),
			GatewayPaymentID: p.GatewayPaymentID,
			GatewayStatus:    p.GatewayStatus,
			StatusDetail:     p.GatewayStatusDetail,
			PaymentMethodID:  p.PaymentMethodID,
			PaymentType:      p.PaymentType,
			Installments:     p.Installments,
			PaidAmount:       p.PaidAmount.InexactFloat64(),
			Currency:         p.Currency.String(),
			PaidAt:           p.PaidAt,
		},
		Subtotal:         o.Subtotal.InexactFloat64(),
		Discount:         o.Discount.InexactFloat64(),
		ShippingCost:     o.ShippingCost.InexactFloat64(),
		Tax:              o.Tax.InexactFloat64(),
		Total:            o.Total.InexactFloat64(),
		TotalItems:       o.TotalItems(),
		FullAddress:      o.FullAddress(),
		Status:           string(o.Status),
		Notes:            o.Notes,
		Source:           string(o.Source),
		PreferenceID:     o.PreferenceID,
		InitPoint:        o.InitPoint,
		SandboxInitPoint: o.SandboxInitPoint,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		DeliveredAt:      o.DeliveredAt,
		CancelledAt:      o.CancelledAt,
		ExpiresAt:        o.ExpiresAt,
	}
}

// NewAdminOrderView builds the full view of o.
func NewAdminOrderView(o *order.Order) AdminOrderView {
	return AdminOrderView{
		OrderView:     NewOrderView(o),
		InternalNotes: o.InternalNotes,
		IPAddress:     o.IPAddress,
		UserAgent:     o.UserAgent,
		Metadata:      o.Metadata,
		Version:       o.Version,
	}
}

// NewAdminOrderViews maps a list of orders.
func NewAdminOrderViews(orders []order.Order) []AdminOrderView {
	views := make([]AdminOrderView, 0, len(orders))
	for i := range orders {
		views = append(views, NewAdminOrderView(&orders[i]))
	}

	return views
}

// NewOrderSummary builds the checkout summary of o.
func NewOrderSummary(o *order.Order) OrderSummary {
	return OrderSummary{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Total:       o.Total.InexactFloat64(),
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
	}
}
