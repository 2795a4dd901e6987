package ordersvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/checkout/internal/testutil/memstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2026, 3, 7, 15, 4, 0, 0, time.UTC)

func seed(store *memstore.Store, n int, email string, status order.Status, createdAt time.Time) order.Order {
	o := order.Order{
		ID:          uuid.NewString(),
		OrderNumber: fmt.Sprintf("ORD-260307-%04d", n),
		Customer:    order.Customer{Name: "Ana", Email: email},
		Items: []orderitem.OrderItem{
			{Name: "Remera", Price: decimal.NewFromInt(500), Quantity: 2},
			{Name: "Gorra", Price: decimal.NewFromInt(300), Quantity: 1},
		},
		Payment:   order.Payment{Method: order.MethodMercadoPago, Status: order.PaymentPending},
		Status:    status,
		Version:   1,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	o.CalculateTotals()
	store.Seed(o)

	return o
}

func newService(store *memstore.Store) *OrderService {
	return MustNewOrderService(
		WithUnitOfWork(store.Factory()),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestGetOrder(t *testing.T) {
	store := memstore.New()
	seeded := seed(store, 1, "ana@example.com", order.StatusPending, fixedNow)
	svc := newService(store)

	got, err := svc.GetOrder(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(got.Items) != 2 || !got.Total.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("items = %d total = %s", len(got.Items), got.Total)
	}

	byNumber, err := svc.GetOrderByNumber(context.Background(), " ORD-260307-0001 ")
	if err != nil || byNumber.ID != seeded.ID {
		t.Errorf("GetOrderByNumber = %v, %v", byNumber, err)
	}

	for _, id := range []string{"nope", uuid.NewString()} {
		if _, err := svc.GetOrder(context.Background(), id); !errors.Is(err, order.ErrNotFound) {
			t.Errorf("GetOrder(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestListOrders(t *testing.T) {
	store := memstore.New()
	for i := 1; i <= 5; i++ {
		status := order.StatusPending
		if i%2 == 0 {
			status = order.StatusPaid
		}
		seed(store, i, "ana@example.com", status, fixedNow.Add(time.Duration(i)*time.Minute))
	}
	seed(store, 6, "bob@example.com", order.StatusPending, fixedNow.Add(time.Hour))
	svc := newService(store)

	tests := []struct {
		name      string
		filter    ListFilter
		wantTotal int64
		wantFirst string
		wantLen   int
	}{
		{name: "defaults", filter: ListFilter{}, wantTotal: 6, wantFirst: "ORD-260307-0006", wantLen: 6},
		{name: "second page", filter: ListFilter{Page: 2, Limit: 4}, wantTotal: 6, wantFirst: "ORD-260307-0002", wantLen: 2},
		{name: "by status", filter: ListFilter{Status: "paid"}, wantTotal: 2, wantFirst: "ORD-260307-0004", wantLen: 2},
		{name: "by email", filter: ListFilter{Email: "BOB@example.com"}, wantTotal: 1, wantFirst: "ORD-260307-0006", wantLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, total, err := svc.ListOrders(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("ListOrders: %v", err)
			}
			if total != tt.wantTotal || len(orders) != tt.wantLen {
				t.Fatalf("total = %d len = %d, want %d/%d", total, len(orders), tt.wantTotal, tt.wantLen)
			}
			if orders[0].OrderNumber != tt.wantFirst {
				t.Errorf("first = %s, want %s", orders[0].OrderNumber, tt.wantFirst)
			}
			if len(orders[0].Items) != 2 {
				t.Errorf("items = %d, want 2", len(orders[0].Items))
			}
		})
	}

	if _, _, err := svc.ListOrders(context.Background(), ListFilter{Status: "lost"}); !errors.Is(err, order.ErrInvalidStatus) {
		t.Errorf("invalid status error = %v", err)
	}
}

func TestListCustomerOrders(t *testing.T) {
	store := memstore.New()
	for i := 1; i <= 25; i++ {
		seed(store, i, "ana@example.com", order.StatusPending, fixedNow.Add(time.Duration(i)*time.Second))
	}
	svc := newService(store)

	orders, err := svc.ListCustomerOrders(context.Background(), "Ana@Example.com")
	if err != nil {
		t.Fatalf("ListCustomerOrders: %v", err)
	}
	if len(orders) != customerHistoryLimit {
		t.Fatalf("len = %d, want %d", len(orders), customerHistoryLimit)
	}
	if orders[0].OrderNumber != "ORD-260307-0025" {
		t.Errorf("first = %s, want newest", orders[0].OrderNumber)
	}

	empty, err := svc.ListCustomerOrders(context.Background(), " ")
	if err != nil || len(empty) != 0 {
		t.Errorf("empty email = %v, %v", empty, err)
	}
}

func TestUpdateStatus(t *testing.T) {
	store := memstore.New()
	seeded := seed(store, 1, "ana@example.com", order.StatusPaid, fixedNow)
	svc := newService(store)

	got, err := svc.UpdateStatus(context.Background(), seeded.ID, "shipped", "sent with Andreani")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.Status != order.StatusShipped || got.Version != 2 {
		t.Errorf("status = %s v%d", got.Status, got.Version)
	}
	if !strings.Contains(got.InternalNotes, "paid -> shipped: sent with Andreani") {
		t.Errorf("internal notes = %q", got.InternalNotes)
	}

	got, err = svc.UpdateStatus(context.Background(), seeded.ID, "delivered", "")
	if err != nil {
		t.Fatalf("UpdateStatus delivered: %v", err)
	}
	if got.DeliveredAt == nil || !got.DeliveredAt.Equal(fixedNow) {
		t.Errorf("delivered at = %v", got.DeliveredAt)
	}

	if _, err := svc.UpdateStatus(context.Background(), seeded.ID, "pending", ""); !errors.Is(err, order.ErrIllegalTransition) {
		t.Errorf("delivered -> pending error = %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), seeded.ID, "teleported", "")
	if !errors.Is(err, order.ErrInvalidStatus) || !strings.Contains(err.Error(), "pending") {
		t.Errorf("invalid status error = %v", err)
	}
}

func TestUpdateStatusVersionConflict(t *testing.T) {
	store := memstore.New()
	seeded := seed(store, 1, "ana@example.com", order.StatusPaid, fixedNow)
	store.BeforeUpdate = func(o *order.Order) error {
		concurrent := seeded
		concurrent.Items = nil
		concurrent.Version = 2
		store.Seed(concurrent)

		return nil
	}
	svc := newService(store)

	if _, err := svc.UpdateStatus(context.Background(), seeded.ID, "processing", ""); !errors.Is(err, order.ErrVersionConflict) {
		t.Errorf("error = %v, want ErrVersionConflict", err)
	}
}

func TestStatsAndDeleteExpired(t *testing.T) {
	store := memstore.New()
	expired := seed(store, 1, "ana@example.com", order.StatusPending, fixedNow.Add(-100*time.Hour))
	past := fixedNow.Add(-time.Hour)
	expired.Items = nil
	expired.ExpiresAt = &past
	store.Seed(expired)

	paid := seed(store, 2, "ana@example.com", order.StatusPaid, fixedNow)
	paid.Items = nil
	paid.Payment.Status = order.PaymentApproved
	paid.ExpiresAt = &past
	store.Seed(paid)

	svc := newService(store)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalOrders != 2 || stats.PendingOrders != 1 || stats.PaidOrders != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if !stats.TotalSales.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("total sales = %s, want 1300", stats.TotalSales)
	}

	deleted, err := svc.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, ok := store.Order(expired.ID); ok {
		t.Error("expired order still stored")
	}
	if _, ok := store.Order(paid.ID); !ok {
		t.Error("paid order was deleted")
	}
}
