package notification

import "time"

// InvoiceNotification marks that an invoice was requested for an approved payment.
// The (OrderID, PaymentID) pair is unique, so each approval is notified once.
type InvoiceNotification struct {
	OrderID   string
	PaymentID string
	CreatedAt time.Time
	SentAt    *time.Time
}

// Sent reports whether the invoice email already went out.
func (n *InvoiceNotification) Sent() bool {
	return n.SentAt != nil
}

// InvoiceRequested is the event published through the outbox.
type InvoiceRequested struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}
