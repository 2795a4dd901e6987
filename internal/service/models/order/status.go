package order

import (
	"fmt"
	"strings"
)

// Status is the fulfillment status of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var statuses = []Status{
	StatusPending,
	StatusPaid,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
	StatusRefunded,
}

// cancelled -> paid covers a payment approved after an earlier attempt was rejected.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusProcessing, StatusCancelled},
	StatusPaid:       {StatusProcessing, StatusShipped, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {StatusPaid},
	StatusRefunded:   {},
}

// Statuses returns every valid order status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)

	return out
}

// ParseStatus parses a raw order status.
func ParseStatus(s string) (Status, error) {
	for _, st := range statuses {
		if string(st) == s {
			return st, nil
		}
	}

	return "", fmt.Errorf("%w: %q, must be one of: %s", ErrInvalidStatus, s, JoinStatuses(statuses))
}

// CanTransitionTo reports whether s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

func (s Status) String() string {
	return string(s)
}

// JoinStatuses renders statuses as a comma separated list.
func JoinStatuses(list []Status) string {
	parts := make([]string, len(list))
	for i, s := range list {
		parts[i] = string(s)
	}

	return strings.Join(parts, ", ")
}

// PaymentStatus is the status of the payment sub-record.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentApproved  PaymentStatus = "approved"
	PaymentRejected  PaymentStatus = "rejected"
	PaymentInProcess PaymentStatus = "in_process"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentApproved, PaymentInProcess, PaymentRejected, PaymentCancelled},
	PaymentInProcess: {PaymentApproved, PaymentRejected, PaymentCancelled},
	PaymentRejected:  {PaymentApproved, PaymentInProcess},
	PaymentApproved:  {PaymentRefunded},
	PaymentCancelled: {},
	PaymentRefunded:  {},
}

// CanTransitionTo reports whether s may move to next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

func (s PaymentStatus) String() string {
	return string(s)
}

// ParsePaymentStatus parses a stored payment status.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(s)
	if _, ok := paymentTransitions[st]; !ok {
		return "", fmt.Errorf("%w: payment status %q", ErrInvalidStatus, s)
	}

	return st, nil
}

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	MethodMercadoPago  PaymentMethod = "mercadopago"
	MethodTransfer     PaymentMethod = "transferencia"
	MethodCash         PaymentMethod = "efectivo"
	MethodWesternUnion PaymentMethod = "western_union"
	MethodPagoFacil    PaymentMethod = "pagofacil"
	MethodRapipago     PaymentMethod = "rapipago"
)

// ParsePaymentMethod parses a stored payment method.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case MethodMercadoPago, MethodTransfer, MethodCash, MethodWesternUnion, MethodPagoFacil, MethodRapipago:
		return m, nil
	default:
		return "", fmt.Errorf("invalid payment method %q", s)
	}
}

// ShippingMethod is the delivery option chosen at checkout.
type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
	ShippingPickup   ShippingMethod = "pickup"
)

// ParseShippingMethod defaults to standard when s is empty.
func ParseShippingMethod(s string) (ShippingMethod, error) {
	switch m := ShippingMethod(s); m {
	case "":
		return ShippingStandard, nil
	case ShippingStandard, ShippingExpress, ShippingPickup:
		return m, nil
	default:
		return "", fmt.Errorf("invalid shipping method %q", s)
	}
}

// Source is the channel the order came from.
type Source string

const (
	SourceWeb       Source = "web"
	SourceMobile    Source = "mobile"
	SourceWhatsApp  Source = "whatsapp"
	SourceInstagram Source = "instagram"
)

// ParseSource falls back to web for unknown or empty values.
func ParseSource(s string) Source {
	switch src := Source(s); src {
	case SourceWeb, SourceMobile, SourceWhatsApp, SourceInstagram:
		return src
	default:
		return SourceWeb
	}
}
