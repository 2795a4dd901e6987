package mailer

import (
	"fmt"
	"strings"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
)

// Store carries the merchant details printed on invoices.
type Store struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

var paymentTypeNames = map[string]string{
	"credit_card":   "Credit card",
	"debit_card":    "Debit card",
	"account_money": "MercadoPago account money",
	"ticket":        "Payment ticket",
	"atm":           "ATM",
	"bank_transfer": "Bank transfer",
}

// InvoiceSubject renders the subject line. A custom subject may use {number} and {store}.
func InvoiceSubject(custom string, o *order.Order, store Store) string {
	if custom == "" {
		return fmt.Sprintf("Invoice for order #%s - %s", o.OrderNumber, store.Name)
	}

	return strings.NewReplacer("{number}", o.OrderNumber, "{store}", store.Name).Replace(custom)
}

// InvoiceBody renders the plain-text invoice of a paid order.
func InvoiceBody(o *order.Order, store Store) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hi %s,\n\n", o.Customer.Name)
	fmt.Fprintf(&b, "Thanks for your purchase at %s. Your payment was approved.\n\n", store.Name)
	fmt.Fprintf(&b, "Order: #%s\n", o.OrderNumber)
	fmt.Fprintf(&b, "Date: %s\n", o.CreatedAt.Format("2006-01-02 15:04"))
	if o.Payment.PaidAt != nil {
		fmt.Fprintf(&b, "Paid: %s\n", o.Payment.PaidAt.Format("2006-01-02 15:04"))
	}
	b.WriteString("\nItems:\n")
	for _, item := range o.Items {
		name := item.Name
		var variant []string
		if item.Size != "" {
			variant = append(variant, "size "+item.Size)
		}
		if item.Color != "" {
			variant = append(variant, "color "+item.Color)
		}
		if len(variant) > 0 {
			name += " (" + strings.Join(variant, ", ") + ")"
		}
		fmt.Fprintf(&b, "  %d x %s @ $%s = $%s\n",
			item.Quantity, name, item.Price.StringFixed(2), item.LineTotal().StringFixed(2))
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Subtotal: $%s\n", o.Subtotal.StringFixed(2))
	if o.Discount.IsPositive() {
		fmt.Fprintf(&b, "Discount: -$%s\n", o.Discount.StringFixed(2))
	}
	fmt.Fprintf(&b, "Shipping: $%s\n", o.ShippingCost.StringFixed(2))
	if o.Tax.IsPositive() {
		fmt.Fprintf(&b, "Tax: $%s\n", o.Tax.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: $%s %s\n", o.Total.StringFixed(2), o.Payment.Currency)

	b.WriteString("\nPayment: ")
	method := paymentTypeNames[o.Payment.PaymentType]
	if method == "" {
		method = o.Payment.PaymentMethodID
	}
	if method == "" {
		method = "MercadoPago"
	}
	b.WriteString(method)
	if o.Payment.Installments > 1 {
		fmt.Fprintf(&b, " (%d installments)", o.Payment.Installments)
	}
	b.WriteString("\n")

	if addr := o.FullAddress(); addr != "" {
		fmt.Fprintf(&b, "Ship to: %s\n", addr)
	}

	fmt.Fprintf(&b, "\n%s\n", store.Name)
	for _, line := range []string{store.Email, store.Phone, store.Address} {
		if line != "" {
			fmt.Fprintf(&b, "%s\n", line)
		}
	}

	return b.String()
}
