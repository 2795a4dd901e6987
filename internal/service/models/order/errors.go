package order

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrVersionConflict   = errors.New("order was modified concurrently")
)
