package notifysvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/dal/uow"
	"github.com/corray333/backend-labs/checkout/internal/service/models/notification"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"go.opentelemetry.io/otel"
)

type mailer interface {
	SendInvoice(ctx context.Context, o *order.Order) error
}

// NotifyService delivers invoice emails requested by approved payments.
type NotifyService struct {
	newUOW uow.Factory
	mailer mailer
	now    func() time.Time
}

// option is a function that configures the NotifyService.
type option func(*NotifyService)

// MustNewNotifyService creates a new NotifyService.
func MustNewNotifyService(opts ...option) *NotifyService {
	s := &NotifyService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("notifysvc: unit of work is not configured")
	}
	if s.mailer == nil {
		panic("notifysvc: mailer is not configured")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the NotifyService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *NotifyService) {
		s.newUOW = uow.NewFactory(pgClient)
	}
}

// WithUnitOfWork sets the unit of work factory for the NotifyService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(f uow.Factory) option {
	return func(s *NotifyService) {
		s.newUOW = f
	}
}

// WithMailer sets the invoice mailer.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMailer(m mailer) option {
	return func(s *NotifyService) {
		s.mailer = m
	}
}

// WithClock replaces time.Now.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *NotifyService) {
		s.now = now
	}
}

// SendInvoice emails the invoice for req unless it was already sent.
// A failed send returns an error so the request is redelivered.
func (s *NotifyService) SendInvoice(ctx context.Context, req notification.InvoiceRequested) error {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.SendInvoice")
	defer span.End()

	work := s.newUOW()

	marker, err := work.NotificationRepository().Get(ctx, req.OrderID, req.PaymentID)
	if err != nil {
		return err
	}
	if marker == nil {
		slog.WarnContext(ctx, "Invoice request without marker", "order_id", req.OrderID, "payment_id", req.PaymentID)

		return nil
	}
	if marker.Sent() {
		slog.InfoContext(ctx, "Invoice already sent", "order_id", req.OrderID, "payment_id", req.PaymentID)

		return nil
	}

	o, err := work.OrderRepository().GetByID(ctx, req.OrderID)
	if err != nil {
		return err
	}

	if err := s.mailer.SendInvoice(ctx, o); err != nil {
		return fmt.Errorf("failed to send invoice for order %s: %w", o.ID, err)
	}

	if err := work.NotificationRepository().MarkSent(ctx, req.OrderID, req.PaymentID, s.now()); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Invoice sent", "order_id", o.ID, "order_number", o.OrderNumber, "email", o.Customer.Email)

	return nil
}
