package uow

import (
	"context"
	"errors"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/inotificationrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iordernumberrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	notificationrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/notification/postgres"
	orderrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/orderitem/postgres"
	ordernumberrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/ordernumber/postgres"
	outboxrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/outbox/postgres"
	"github.com/jackc/pgx/v5"
)

// UnitOfWork groups repositories that share one transaction after Begin.
// Before Begin every repository runs on the pool.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	// Rollback is a no-op after a successful Commit.
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	OrderNumberRepository() iordernumberrepo.IOrderNumberRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
	NotificationRepository() inotificationrepo.INotificationRepository
}

// Factory opens a fresh unit of work.
type Factory func() UnitOfWork

// NewFactory returns a Factory backed by pg.
func NewFactory(pg *postgres.Client) Factory {
	return func() UnitOfWork {
		return NewUnitOfWork(pg)
	}
}

type unitOfWork struct {
	client *postgres.Client
	tx     pgx.Tx

	orderRepo        iorderrepo.IOrderRepository
	orderItemRepo    iorderitemrepo.IOrderItemRepository
	orderNumberRepo  iordernumberrepo.IOrderNumberRepository
	outboxRepo       ioutboxrepo.IOutboxRepository
	notificationRepo inotificationrepo.INotificationRepository
}

// NewUnitOfWork creates a unit of work on the pool of pg.
func NewUnitOfWork(pg *postgres.Client) *unitOfWork {
	u := &unitOfWork{client: pg}
	u.bind(pg.Pool())

	return u
}

func (u *unitOfWork) bind(conn postgres.GenericConn) {
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(conn)
	u.orderNumberRepo = ordernumberrepo.NewOrderNumberRepository(conn)
	u.outboxRepo = outboxrepo.NewOutboxRepository(conn)
	u.notificationRepo = notificationrepo.NewNotificationRepository(conn)
}

func (u *unitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *unitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return u.orderItemRepo
}

func (u *unitOfWork) OrderNumberRepository() iordernumberrepo.IOrderNumberRepository {
	return u.orderNumberRepo
}

func (u *unitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

func (u *unitOfWork) NotificationRepository() inotificationrepo.INotificationRepository {
	return u.notificationRepo
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.client.Pool().Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	u.bind(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}

	return nil
}
