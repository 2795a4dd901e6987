package checkoutsvc

import "errors"

// ValidationError is a rejected cart. Message is safe to show to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrEmptyCart           = &ValidationError{Message: "at least one product is required"}
	ErrIncompleteCustomer  = &ValidationError{Message: "customer information is incomplete"}
	ErrNoValidProducts     = &ValidationError{Message: "no valid products in cart"}
	ErrNegativeAdjustments = &ValidationError{Message: "discount and shipping cost must not be negative"}
)

// ErrInvalidPolicy is returned for an unknown invalid price policy.
var ErrInvalidPolicy = errors.New("invalid price policy")
