package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/shopspring/decimal"
)

// DefaultExpiry is how long an unpaid order is kept.
const DefaultExpiry = 72 * time.Hour

// Customer is the buyer snapshot captured at checkout.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	DNI     string `json:"dni"`
}

// Shipping holds the delivery details of an order.
type Shipping struct {
	Method         ShippingMethod `json:"method"`
	Address        string         `json:"address"`
	City           string         `json:"city"`
	Province       string         `json:"province"`
	PostalCode     string         `json:"postalCode"`
	TrackingNumber string         `json:"trackingNumber"`
}

// Payment is the payment sub-record, including gateway correlation fields.
type Payment struct {
	Method              PaymentMethod     `json:"method"`
	Status              PaymentStatus     `json:"status"`
	GatewayPaymentID    string            `json:"gatewayPaymentId"`
	GatewayStatus       string            `json:"gatewayStatus"`
	GatewayStatusDetail string            `json:"gatewayStatusDetail"`
	PaymentMethodID     string            `json:"paymentMethodId"`
	PaymentType         string            `json:"paymentType"`
	Installments        int               `json:"installments"`
	PaidAmount          decimal.Decimal   `json:"paidAmount"`
	Currency            currency.Currency `json:"currency"`
	PaidAt              *time.Time        `json:"paidAt,omitempty"`
}

// Order is the ledger entry of a checkout attempt.
type Order struct {
	ID                string                `json:"id"`
	OrderNumber       string                `json:"orderNumber"`
	Customer          Customer              `json:"customer"`
	Items             []orderitem.OrderItem `json:"items"`
	Shipping          Shipping              `json:"shipping"`
	Payment           Payment               `json:"payment"`
	Subtotal          decimal.Decimal       `json:"subtotal"`
	Discount          decimal.Decimal       `json:"discount"`
	ShippingCost      decimal.Decimal       `json:"shippingCost"`
	Tax               decimal.Decimal       `json:"tax"`
	Total             decimal.Decimal       `json:"total"`
	Status            Status                `json:"status"`
	Notes             string                `json:"notes"`
	InternalNotes     string                `json:"internalNotes"`
	PreferenceID      string                `json:"preferenceId"`
	ExternalReference string                `json:"externalReference"`
	InitPoint         string                `json:"initPoint"`
	SandboxInitPoint  string                `json:"sandboxInitPoint"`
	Source            Source                `json:"source"`
	Metadata          map[string]any        `json:"metadata,omitempty"`
	IPAddress         string                `json:"ipAddress"`
	UserAgent         string                `json:"userAgent"`
	Version           int64                 `json:"version"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
	DeliveredAt       *time.Time            `json:"deliveredAt,omitempty"`
	CancelledAt       *time.Time            `json:"cancelledAt,omitempty"`
	ExpiresAt         *time.Time            `json:"expiresAt,omitempty"`
}

// CalculateTotals recomputes item subtotals, the order subtotal and the total.
// total = subtotal - discount + shippingCost + tax.
func (o *Order) CalculateTotals() decimal.Decimal {
	subtotal := decimal.Zero
	for i := range o.Items {
		o.Items[i].Subtotal = o.Items[i].LineTotal()
		subtotal = subtotal.Add(o.Items[i].Subtotal)
	}
	o.Subtotal = subtotal
	o.Total = subtotal.Sub(o.Discount).Add(o.ShippingCost).Add(o.Tax)

	return o.Total
}

// UpdateStatus moves the order to next, stamping delivery or cancellation time.
func (o *Order) UpdateStatus(next Status, now time.Time) (Status, error) {
	old := o.Status
	if old == next {
		return old, nil
	}
	if !old.CanTransitionTo(next) {
		return old, fmt.Errorf("%w: order %s -> %s", ErrIllegalTransition, old, next)
	}
	o.setStatus(next, now)

	return old, nil
}

func (o *Order) setStatus(next Status, now time.Time) {
	o.Status = next
	switch next {
	case StatusDelivered:
		o.DeliveredAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	}
	o.UpdatedAt = now
}

// MarkAsPaid approves the payment and moves a pending or cancelled order to paid.
// Orders already past paid keep their fulfillment status.
func (o *Order) MarkAsPaid(now time.Time) {
	o.Payment.Status = PaymentApproved
	o.Payment.PaidAt = &now
	if o.Status == StatusPending || o.Status == StatusCancelled {
		o.setStatus(StatusPaid, now)
	}
	o.UpdatedAt = now
}

// GatewayUpdate is an external payment status report with whatever details the trigger has.
type GatewayUpdate struct {
	Status          string
	PaymentID       string
	StatusDetail    string
	PaymentMethodID string
	PaymentType     string
	Installments    int
	PaidAmount      decimal.Decimal
	HasDetails      bool
}

// Effect describes what ApplyGatewayStatus changed.
type Effect struct {
	Changed  bool
	Approved bool
}

// ApplyGatewayStatus merges a gateway status report into the order.
// A report carrying the status already stored is a no-op.
func (o *Order) ApplyGatewayStatus(u GatewayUpdate, now time.Time) (Effect, error) {
	if u.Status == o.Payment.GatewayStatus {
		return Effect{}, nil
	}

	nextPayment, nextStatus, known := o.mapGatewayStatus(u.Status)
	if known {
		if nextPayment != o.Payment.Status && !o.Payment.Status.CanTransitionTo(nextPayment) {
			return Effect{}, fmt.Errorf("%w: payment %s -> %s", ErrIllegalTransition, o.Payment.Status, nextPayment)
		}
		if nextStatus != o.Status && !o.Status.CanTransitionTo(nextStatus) {
			return Effect{}, fmt.Errorf("%w: order %s -> %s", ErrIllegalTransition, o.Status, nextStatus)
		}
	}

	o.Payment.GatewayStatus = u.Status
	if u.PaymentID != "" {
		o.Payment.GatewayPaymentID = u.PaymentID
	}
	if u.HasDetails {
		o.Payment.GatewayStatusDetail = u.StatusDetail
		o.Payment.PaymentMethodID = u.PaymentMethodID
		o.Payment.PaymentType = u.PaymentType
		o.Payment.Installments = u.Installments
		o.Payment.PaidAmount = u.PaidAmount
	}
	o.UpdatedAt = now

	if !known {
		return Effect{Changed: true}, nil
	}

	if nextPayment == PaymentApproved {
		o.MarkAsPaid(now)

		return Effect{Changed: true, Approved: true}, nil
	}

	o.Payment.Status = nextPayment
	if nextStatus != o.Status {
		o.setStatus(nextStatus, now)
	}

	return Effect{Changed: true}, nil
}

func (o *Order) mapGatewayStatus(status string) (PaymentStatus, Status, bool) {
	switch status {
	case "approved":
		next := o.Status
		if next == StatusPending || next == StatusCancelled {
			next = StatusPaid
		}

		return PaymentApproved, next, true
	case "pending":
		return PaymentInProcess, o.Status, true
	case "rejected":
		return PaymentRejected, StatusCancelled, true
	case "cancelled":
		return PaymentCancelled, StatusCancelled, true
	case "refunded":
		return PaymentRefunded, StatusRefunded, true
	default:
		return o.Payment.Status, o.Status, false
	}
}

// IsExpired reports whether an unpaid order passed its expiry time.
func (o *Order) IsExpired(now time.Time) bool {
	return o.ExpiresAt != nil && o.Payment.Status == PaymentPending && now.After(*o.ExpiresAt)
}

// TotalItems returns the number of units in the order.
func (o *Order) TotalItems() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}

	return total
}

// FullAddress joins the non-empty shipping address parts.
func (o *Order) FullAddress() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{o.Shipping.Address, o.Shipping.City, o.Shipping.Province, o.Shipping.PostalCode} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}

	return strings.Join(parts, ", ")
}
