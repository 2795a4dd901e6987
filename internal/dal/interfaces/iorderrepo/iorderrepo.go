package iorderrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
)

// IOrderRepository is an interface for order repository.
// Insert and Update recompute totals before writing.
type IOrderRepository interface {
	Insert(ctx context.Context, o *order.Order) error
	GetByID(ctx context.Context, id string) (*order.Order, error)
	GetByNumber(ctx context.Context, number string) (*order.Order, error)
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
	Count(ctx context.Context, filter *order.QueryOrdersModel) (int64, error)

	// Update writes o if its stored version still equals o.Version and bumps the version.
	// It returns order.ErrVersionConflict when another writer got there first.
	Update(ctx context.Context, o *order.Order) error

	// DeleteExpired removes unpaid orders whose expiry passed before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Stats(ctx context.Context) (*order.Stats, error)
}
