package ordersvc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/dal/uow"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

const (
	defaultPageSize      = 50
	maxPageSize          = 200
	customerHistoryLimit = 20
)

// OrderService is a service for reading and administering orders.
type OrderService struct {
	newUOW uow.Factory
	now    func() time.Time
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("ordersvc: unit of work is not configured")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.newUOW = uow.NewFactory(pgClient)
	}
}

// WithUnitOfWork sets the unit of work factory for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(f uow.Factory) option {
	return func(s *OrderService) {
		s.newUOW = f
	}
}

// WithClock replaces time.Now.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *OrderService) {
		s.now = now
	}
}

// ListFilter selects a page of orders. Page starts at 1.
type ListFilter struct {
	Status string
	Email  string
	Page   int
	Limit  int
}

// Normalize returns the page and page size actually served for the filter.
func (f ListFilter) Normalize() (int, int) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	return page, limit
}

// GetOrder returns the order with its items.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.GetOrder")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, order.ErrNotFound
	}

	return s.newUOW().OrderRepository().GetByID(ctx, id)
}

// GetOrderByNumber returns the order with the given public number.
func (s *OrderService) GetOrderByNumber(ctx context.Context, number string) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.GetOrderByNumber")
	defer span.End()

	return s.newUOW().OrderRepository().GetByNumber(ctx, strings.TrimSpace(number))
}

// ListOrders returns one page of orders, newest first, and the number of matching orders.
func (s *OrderService) ListOrders(ctx context.Context, filter ListFilter) ([]order.Order, int64, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.ListOrders")
	defer span.End()

	query := &order.QueryOrdersModel{Email: strings.ToLower(strings.TrimSpace(filter.Email))}
	if filter.Status != "" {
		status, err := order.ParseStatus(filter.Status)
		if err != nil {
			return nil, 0, err
		}
		query.Status = status
	}

	page, limit := filter.Normalize()
	query.Limit = limit
	query.Offset = (page - 1) * limit

	work := s.newUOW()
	total, err := work.OrderRepository().Count(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	orders, err := s.queryWithItems(ctx, work, query)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// ListCustomerOrders returns the most recent orders placed with email.
func (s *OrderService) ListCustomerOrders(ctx context.Context, email string) ([]order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.ListCustomerOrders")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return []order.Order{}, nil
	}

	return s.queryWithItems(ctx, s.newUOW(), &order.QueryOrdersModel{
		Email: email,
		Limit: customerHistoryLimit,
	})
}

func (s *OrderService) queryWithItems(
	ctx context.Context,
	work uow.UnitOfWork,
	query *order.QueryOrdersModel,
) ([]order.Order, error) {
	orders, err := work.OrderRepository().Query(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	itemQuery := &orderitem.QueryOrderItemsModel{}
	for _, o := range orders {
		itemQuery.OrderIds = append(itemQuery.OrderIds, o.ID)
	}
	items, err := work.OrderItemRepository().Query(ctx, itemQuery)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items = []orderitem.OrderItem{}
		for _, item := range items {
			if item.OrderID == orders[i].ID {
				orders[i].Items = append(orders[i].Items, item)
			}
		}
	}

	return orders, nil
}

// UpdateStatus moves an order to status and appends notes to its internal notes.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status, notes string) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.UpdateStatus")
	defer span.End()

	next, err := order.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	old, err := o.UpdateStatus(next, now)
	if err != nil {
		return nil, err
	}

	if notes = strings.TrimSpace(notes); notes != "" {
		entry := fmt.Sprintf("[%s] %s -> %s: %s", now.UTC().Format(time.RFC3339), old, next, notes)
		if o.InternalNotes != "" {
			o.InternalNotes += "\n"
		}
		o.InternalNotes += entry
		o.UpdatedAt = now
	}

	if err := s.newUOW().OrderRepository().Update(ctx, o); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Order status updated", "order_id", o.ID, "from", old, "to", next)

	return o, nil
}

// Stats returns dashboard aggregates over all orders.
func (s *OrderService) Stats(ctx context.Context) (*order.Stats, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.Stats")
	defer span.End()

	return s.newUOW().OrderRepository().Stats(ctx)
}

// DeleteExpired removes unpaid orders past their expiry time.
func (s *OrderService) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.DeleteExpired")
	defer span.End()

	return s.newUOW().OrderRepository().DeleteExpired(ctx, s.now())
}
