package checkoutsvc

import (
	"fmt"
	"strings"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/shopspring/decimal"
)

// PricePolicy decides what happens to items whose price is missing or not positive.
type PricePolicy string

const (
	PolicyReject   PricePolicy = "reject"
	PolicyDrop     PricePolicy = "drop"
	PolicyFallback PricePolicy = "fallback"
)

// ParsePricePolicy defaults to reject when s is empty.
func ParsePricePolicy(s string) (PricePolicy, error) {
	switch p := PricePolicy(strings.ToLower(s)); p {
	case "":
		return PolicyReject, nil
	case PolicyReject, PolicyDrop, PolicyFallback:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// CartItem is an untrusted cart line. Price is nil when the client sent something
// that is not a number; Quantity is nil when missing, which means 1.
type CartItem struct {
	Name        string
	Description string
	Image       string
	Size        string
	Color       string
	Price       *decimal.Decimal
	Quantity    *int
}

// Cart is a checkout request from the storefront.
type Cart struct {
	Items        []CartItem
	Customer     order.Customer
	Shipping     order.Shipping
	ShippingCost decimal.Decimal
	Discount     decimal.Decimal
	Notes        string
	Source       order.Source
	Metadata     map[string]any
	IPAddress    string
	UserAgent    string
}

// sanitizeItems turns cart lines into order items according to policy.
func sanitizeItems(items []CartItem, policy PricePolicy, fallback decimal.Decimal) ([]orderitem.OrderItem, error) {
	valid := make([]orderitem.OrderItem, 0, len(items))
	var invalid []int

	for i, it := range items {
		quantity := 1
		if it.Quantity != nil {
			quantity = *it.Quantity
		}

		var price decimal.Decimal
		if it.Price != nil && it.Price.IsPositive() {
			price = *it.Price
		} else {
			switch policy {
			case PolicyFallback:
				price = fallback
			case PolicyReject:
				invalid = append(invalid, i+1)

				continue
			default:
				continue
			}
		}

		if !price.IsPositive() || quantity <= 0 {
			continue
		}

		name := strings.TrimSpace(it.Name)
		if name == "" {
			name = fmt.Sprintf("Product %d", i+1)
		}

		valid = append(valid, orderitem.OrderItem{
			Name:        name,
			Description: it.Description,
			Image:       it.Image,
			Size:        it.Size,
			Color:       it.Color,
			Price:       price,
			Quantity:    quantity,
		})
	}

	if len(valid) == 0 {
		return nil, ErrNoValidProducts
	}
	if len(invalid) > 0 {
		parts := make([]string, len(invalid))
		for i, idx := range invalid {
			parts[i] = fmt.Sprintf("%d", idx)
		}

		return nil, &ValidationError{
			Message: "invalid price for item " + strings.Join(parts, ", "),
		}
	}

	return valid, nil
}
