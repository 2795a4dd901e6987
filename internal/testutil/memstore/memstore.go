// Package memstore is an in-memory unit of work for service tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/inotificationrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iordernumberrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/uow"
	"github.com/corray333/backend-labs/checkout/internal/service/models/notification"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/checkout/internal/service/models/outbox"
	"github.com/shopspring/decimal"
)

type markerKey struct {
	orderID   string
	paymentID string
}

type state struct {
	orders        map[string]order.Order
	items         []orderitem.OrderItem
	sequences     map[string]int64
	outbox        []outbox.OutboxMessage
	notifications map[markerKey]notification.InvoiceNotification
	nextItemID    int64
	nextOutboxID  int64
}

func (s *state) clone() state {
	c := state{
		orders:        make(map[string]order.Order, len(s.orders)),
		items:         append([]orderitem.OrderItem(nil), s.items...),
		sequences:     make(map[string]int64, len(s.sequences)),
		outbox:        append([]outbox.OutboxMessage(nil), s.outbox...),
		notifications: make(map[markerKey]notification.InvoiceNotification, len(s.notifications)),
		nextItemID:    s.nextItemID,
		nextOutboxID:  s.nextOutboxID,
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}

	return c
}

// Store holds every table in memory. A transaction snapshots the whole store on
// Begin and restores it on Rollback, so tests must not run overlapping transactions
// that roll back.
type Store struct {
	mu sync.Mutex
	st state

	// BeforeUpdate, when set, runs before every order update and may fail it.
	BeforeUpdate func(o *order.Order) error
	// OutboxInsertErr, when set, fails every outbox insert.
	OutboxInsertErr error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		st: state{
			orders:        map[string]order.Order{},
			sequences:     map[string]int64{},
			notifications: map[markerKey]notification.InvoiceNotification{},
		},
	}
}

// Factory returns a uow.Factory over the store.
func (s *Store) Factory() uow.Factory {
	return func() uow.UnitOfWork {
		return &unitOfWork{store: s}
	}
}

// Seed stores o and its items as-is, bypassing the repository hooks.
func (s *Store) Seed(o order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range o.Items {
		s.st.nextItemID++
		item.ID = s.st.nextItemID
		item.OrderID = o.ID
		s.st.items = append(s.st.items, item)
	}
	o.Items = nil
	s.st.orders[o.ID] = o
}

// Order returns the stored order with its items.
func (s *Store) Order(id string) (order.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.st.orders[id]
	if !ok {
		return order.Order{}, false
	}
	o.Items = s.itemsOf(id)

	return o, true
}

// Orders returns every stored order without items.
func (s *Store) Orders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]order.Order, 0, len(s.st.orders))
	for _, o := range s.st.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })

	return out
}

// Outbox returns the queued messages.
func (s *Store) Outbox() []outbox.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]outbox.OutboxMessage(nil), s.st.outbox...)
}

// Notifications returns the number of stored invoice markers.
func (s *Store) Notifications() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.st.notifications)
}

func (s *Store) itemsOf(orderID string) []orderitem.OrderItem {
	items := make([]orderitem.OrderItem, 0)
	for _, item := range s.st.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}

	return items
}

type unitOfWork struct {
	store    *Store
	snapshot *state
}

func (u *unitOfWork) Begin(context.Context) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	snap := u.store.st.clone()
	u.snapshot = &snap

	return nil
}

func (u *unitOfWork) Commit(context.Context) error {
	u.snapshot = nil

	return nil
}

func (u *unitOfWork) Rollback(context.Context) error {
	if u.snapshot == nil {
		return nil
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	u.store.st = *u.snapshot
	u.snapshot = nil

	return nil
}

func (u *unitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return orderRepo{u.store}
}

func (u *unitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return itemRepo{u.store}
}

func (u *unitOfWork) OrderNumberRepository() iordernumberrepo.IOrderNumberRepository {
	return numberRepo{u.store}
}

func (u *unitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return outboxRepo{u.store}
}

func (u *unitOfWork) NotificationRepository() inotificationrepo.INotificationRepository {
	return notificationRepo{u.store}
}

type orderRepo struct{ s *Store }

func (r orderRepo) Insert(_ context.Context, o *order.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.st.orders[o.ID]; ok {
		return fmt.Errorf("duplicate order id %s", o.ID)
	}
	for _, existing := range r.s.st.orders {
		if existing.OrderNumber == o.OrderNumber {
			return fmt.Errorf("duplicate order number %s", o.OrderNumber)
		}
	}
	o.CalculateTotals()
	o.Version = 1

	stored := *o
	stored.Items = nil
	r.s.st.orders[o.ID] = stored

	return nil
}

func (r orderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.Items = r.s.itemsOf(id)

	return &o, nil
}

func (r orderRepo) GetByNumber(_ context.Context, number string) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, o := range r.s.st.orders {
		if o.OrderNumber == number {
			o.Items = r.s.itemsOf(o.ID)

			return &o, nil
		}
	}

	return nil, order.ErrNotFound
}

func (r orderRepo) filtered(filter *order.QueryOrdersModel) []order.Order {
	ids := map[string]bool{}
	if filter != nil {
		for _, id := range filter.Ids {
			ids[id] = true
		}
	}

	out := make([]order.Order, 0)
	for _, o := range r.s.st.orders {
		if filter != nil {
			if len(ids) > 0 && !ids[o.ID] {
				continue
			}
			if filter.Status != "" && o.Status != filter.Status {
				continue
			}
			if filter.Email != "" && o.Customer.Email != strings.ToLower(filter.Email) {
				continue
			}
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out
}

func (r orderRepo) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := r.filtered(filter)
	if filter != nil && filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []order.Order{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter != nil && filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}

	return out, nil
}

func (r orderRepo) Count(_ context.Context, filter *order.QueryOrdersModel) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return int64(len(r.filtered(filter))), nil
}

func (r orderRepo) Update(_ context.Context, o *order.Order) error {
	if r.s.BeforeUpdate != nil {
		if err := r.s.BeforeUpdate(o); err != nil {
			return err
		}
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.st.orders[o.ID]
	if !ok || current.Version != o.Version {
		return fmt.Errorf("%w: order %s version %d", order.ErrVersionConflict, o.ID, o.Version)
	}
	o.CalculateTotals()
	o.Version++

	stored := *o
	stored.Items = nil
	r.s.st.orders[o.ID] = stored

	return nil
}

func (r orderRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var deleted int64
	for id, o := range r.s.st.orders {
		if o.IsExpired(now) {
			delete(r.s.st.orders, id)
			deleted++
		}
	}

	return deleted, nil
}

func (r orderRepo) Stats(context.Context) (*order.Stats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stats := &order.Stats{TotalSales: decimal.Zero, PaymentMethods: []order.MethodStats{}}
	byMethod := map[order.PaymentMethod]*order.MethodStats{}
	for _, o := range r.s.st.orders {
		stats.TotalOrders++
		switch o.Status {
		case order.StatusPending:
			stats.PendingOrders++
		case order.StatusPaid:
			stats.PaidOrders++
		case order.StatusShipped, order.StatusDelivered:
			stats.CompletedOrders++
		}
		if o.Status == order.StatusPaid || o.Status == order.StatusShipped || o.Status == order.StatusDelivered {
			stats.TotalSales = stats.TotalSales.Add(o.Total)
		}
		ms, ok := byMethod[o.Payment.Method]
		if !ok {
			ms = &order.MethodStats{Method: o.Payment.Method, Total: decimal.Zero}
			byMethod[o.Payment.Method] = ms
		}
		ms.Count++
		ms.Total = ms.Total.Add(o.Total)
	}
	for _, ms := range byMethod {
		stats.PaymentMethods = append(stats.PaymentMethods, *ms)
	}
	sort.Slice(stats.PaymentMethods, func(i, j int) bool {
		return stats.PaymentMethods[i].Count > stats.PaymentMethods[j].Count
	})

	return stats, nil
}

type itemRepo struct{ s *Store }

func (r itemRepo) BulkInsert(_ context.Context, items []orderitem.OrderItem) ([]orderitem.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]orderitem.OrderItem, 0, len(items))
	for _, item := range items {
		r.s.st.nextItemID++
		item.ID = r.s.st.nextItemID
		item.Subtotal = item.LineTotal()
		r.s.st.items = append(r.s.st.items, item)
		out = append(out, item)
	}

	return out, nil
}

func (r itemRepo) Query(_ context.Context, filter *orderitem.QueryOrderItemsModel) ([]orderitem.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	orderIDs := map[string]bool{}
	for _, id := range filter.OrderIds {
		orderIDs[id] = true
	}
	ids := map[int64]bool{}
	for _, id := range filter.Ids {
		ids[id] = true
	}

	out := make([]orderitem.OrderItem, 0)
	for _, item := range r.s.st.items {
		if len(orderIDs) > 0 && !orderIDs[item.OrderID] {
			continue
		}
		if len(ids) > 0 && !ids[item.ID] {
			continue
		}
		out = append(out, item)
	}

	return out, nil
}

type numberRepo struct{ s *Store }

func (r numberRepo) Next(_ context.Context, day time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := day.Format("2006-01-02")
	r.s.st.sequences[key]++

	return r.s.st.sequences[key], nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Insert(_ context.Context, msg outbox.OutboxMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.OutboxInsertErr != nil {
		return r.s.OutboxInsertErr
	}
	r.s.st.nextOutboxID++
	msg.ID = r.s.st.nextOutboxID
	r.s.st.outbox = append(r.s.st.outbox, msg)

	return nil
}

func (r outboxRepo) GetPendingMessages(_ context.Context, limit int) ([]outbox.OutboxMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	out := make([]outbox.OutboxMessage, 0)
	for _, msg := range r.s.st.outbox {
		if !msg.NextRetryAt.After(now) && msg.RetryCount < msg.MaxRetries {
			out = append(out, msg)
		}
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

func (r outboxRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i, msg := range r.s.st.outbox {
		if msg.ID == id {
			r.s.st.outbox = append(r.s.st.outbox[:i], r.s.st.outbox[i+1:]...)

			return nil
		}
	}

	return nil
}

func (r outboxRepo) UpdateRetry(_ context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.st.outbox {
		if r.s.st.outbox[i].ID == id {
			r.s.st.outbox[i].RetryCount = retryCount
			r.s.st.outbox[i].LastError = lastError
			r.s.st.outbox[i].NextRetryAt = nextRetryAt
		}
	}

	return nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Reserve(_ context.Context, orderID, paymentID string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := markerKey{orderID, paymentID}
	if _, ok := r.s.st.notifications[key]; ok {
		return false, nil
	}
	r.s.st.notifications[key] = notification.InvoiceNotification{
		OrderID:   orderID,
		PaymentID: paymentID,
		CreatedAt: now,
	}

	return true, nil
}

func (r notificationRepo) Get(_ context.Context, orderID, paymentID string) (*notification.InvoiceNotification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.st.notifications[markerKey{orderID, paymentID}]
	if !ok {
		return nil, nil
	}

	return &n, nil
}

func (r notificationRepo) MarkSent(_ context.Context, orderID, paymentID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := markerKey{orderID, paymentID}
	n, ok := r.s.st.notifications[key]
	if !ok {
		return nil
	}
	n.SentAt = &now
	r.s.st.notifications[key] = n

	return nil
}
