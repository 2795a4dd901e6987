package paymentsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/dal/uow"
	"github.com/corray333/backend-labs/checkout/internal/gateway/mercadopago"
	"github.com/corray333/backend-labs/checkout/internal/service/models/notification"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/outbox"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

// DefaultInvoiceQueue is the queue invoice requests are published to.
const DefaultInvoiceQueue = "checkout.invoice.requested"

const invoiceMaxRetries = 5

var (
	// ErrMissingPaymentID is returned for a payment notification without a payment id.
	ErrMissingPaymentID = errors.New("payment id is missing")
	// ErrGatewayLookup wraps any failure to fetch a notified payment, whatever the gateway answered.
	ErrGatewayLookup = errors.New("payment lookup failed")
)

type gateway interface {
	GetPayment(ctx context.Context, id string) (*mercadopago.Payment, error)
}

// Notification is a webhook delivery from the gateway.
type Notification struct {
	Type   string
	Action string
	DataID string
}

// RedirectKind is the back URL the buyer returned through.
type RedirectKind string

const (
	RedirectSuccess RedirectKind = "success"
	RedirectFailure RedirectKind = "failure"
	RedirectPending RedirectKind = "pending"
)

// Outcome is the result of reconciling one status report.
type Outcome struct {
	Order   *order.Order
	Applied bool
	Status  string
}

// PaymentService reconciles gateway payment reports into orders.
type PaymentService struct {
	newUOW          uow.Factory
	gateway         gateway
	invoicesEnabled bool
	invoiceQueue    string
	frontendURL     string
	now             func() time.Time
}

// option is a function that configures the PaymentService.
type option func(*PaymentService)

// MustNewPaymentService creates a new PaymentService.
func MustNewPaymentService(opts ...option) *PaymentService {
	s := &PaymentService{
		invoiceQueue: DefaultInvoiceQueue,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("paymentsvc: unit of work is not configured")
	}
	if s.gateway == nil {
		panic("paymentsvc: payment gateway is not configured")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the PaymentService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *PaymentService) {
		s.newUOW = uow.NewFactory(pgClient)
	}
}

// WithUnitOfWork sets the unit of work factory for the PaymentService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(f uow.Factory) option {
	return func(s *PaymentService) {
		s.newUOW = f
	}
}

// WithGateway sets the payment gateway.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithGateway(g gateway) option {
	return func(s *PaymentService) {
		s.gateway = g
	}
}

// WithInvoices enables invoice requests for approved payments. An empty queue keeps the default.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithInvoices(enabled bool, queue string) option {
	return func(s *PaymentService) {
		s.invoicesEnabled = enabled
		if queue != "" {
			s.invoiceQueue = queue
		}
	}
}

// WithFrontendURL sets the storefront root redirects point to.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithFrontendURL(u string) option {
	return func(s *PaymentService) {
		s.frontendURL = strings.TrimRight(u, "/")
	}
}

// WithClock replaces time.Now.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *PaymentService) {
		s.now = now
	}
}

// ReconcileWebhook fetches the payment named by n and applies its status to the order.
// Notifications that are not about payments are acknowledged without effect.
func (s *PaymentService) ReconcileWebhook(ctx context.Context, n Notification) (*Outcome, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.ReconcileWebhook")
	defer span.End()

	if n.Type != "payment" {
		slog.InfoContext(ctx, "Ignoring webhook", "type", n.Type, "action", n.Action)

		return &Outcome{}, nil
	}
	if n.DataID == "" {
		return nil, ErrMissingPaymentID
	}

	payment, err := s.gateway.GetPayment(ctx, n.DataID)
	if err != nil {
		return nil, fmt.Errorf("%w: payment %s: %w", ErrGatewayLookup, n.DataID, err)
	}

	slog.InfoContext(ctx, "Webhook payment fetched",
		"payment_id", n.DataID,
		"status", payment.Status,
		"external_reference", payment.ExternalReference,
	)

	return s.reconcile(ctx, payment.ExternalReference, updateFromPayment(payment))
}

// ReconcileRedirect applies what the buyer's return trip says and returns the storefront URL
// to send them to. Failures are reported through the error query parameter.
func (s *PaymentService) ReconcileRedirect(ctx context.Context, kind RedirectKind, paymentID, externalRef string) string {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.ReconcileRedirect")
	defer span.End()

	var (
		ref    = externalRef
		update order.GatewayUpdate
	)

	switch kind {
	case RedirectSuccess:
		if paymentID == "" {
			return s.errorURL(RedirectFailure, "payment_id_missing")
		}
		payment, err := s.gateway.GetPayment(ctx, paymentID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to fetch payment on redirect", "payment_id", paymentID, "error", err)

			return s.errorURL(RedirectFailure, "server_error")
		}
		if externalRef != "" && externalRef != payment.ExternalReference {
			slog.WarnContext(ctx, "Redirect reference does not match payment",
				"payment_id", paymentID,
				"external_reference", externalRef,
				"payment_reference", payment.ExternalReference,
			)

			return s.errorURL(RedirectFailure, "order_not_found")
		}
		ref = payment.ExternalReference
		update = updateFromPayment(payment)
	case RedirectFailure:
		update = order.GatewayUpdate{Status: "rejected", PaymentID: paymentID}
	case RedirectPending:
		update = order.GatewayUpdate{Status: "pending", PaymentID: paymentID}
	default:
		return s.errorURL(RedirectFailure, "server_error")
	}

	// Pending and failure returns stay on their own page when the order can't be resolved.
	landing := RedirectFailure
	if kind != RedirectSuccess {
		landing = kind
	}

	outcome, err := s.reconcile(ctx, ref, update)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return s.errorURL(landing, "order_not_found")
		}
		slog.ErrorContext(ctx, "Failed to reconcile redirect", "kind", kind, "external_reference", ref, "error", err)

		return s.errorURL(landing, "server_error")
	}

	params := url.Values{}
	params.Set("orderId", outcome.Order.ID)
	params.Set("orderNumber", outcome.Order.OrderNumber)
	if outcome.Order.Payment.GatewayPaymentID != "" {
		params.Set("paymentId", outcome.Order.Payment.GatewayPaymentID)
	}
	params.Set("status", update.Status)

	return s.frontendURL + "/payment/" + string(kind) + "?" + params.Encode()
}

func (s *PaymentService) errorURL(kind RedirectKind, code string) string {
	return s.frontendURL + "/payment/" + string(kind) + "?" + url.Values{"error": {code}}.Encode()
}

func updateFromPayment(p *mercadopago.Payment) order.GatewayUpdate {
	return order.GatewayUpdate{
		Status:          p.Status,
		PaymentID:       p.ID.String(),
		StatusDetail:    p.StatusDetail,
		PaymentMethodID: p.PaymentMethodID,
		PaymentType:     p.PaymentTypeID,
		Installments:    p.Installments,
		PaidAmount:      p.TransactionAmount,
		HasDetails:      true,
	}
}

// reconcile applies u to the order ref. Illegal transitions are logged and reported as not applied.
func (s *PaymentService) reconcile(ctx context.Context, ref string, u order.GatewayUpdate) (_ *Outcome, err error) {
	if _, err := uuid.Parse(ref); err != nil {
		return nil, fmt.Errorf("%w: external reference %q", order.ErrNotFound, ref)
	}

	work := s.newUOW()
	o, err := work.OrderRepository().GetByID(ctx, ref)
	if err != nil {
		return nil, err
	}

	now := s.now()
	effect, err := o.ApplyGatewayStatus(u, now)
	if errors.Is(err, order.ErrIllegalTransition) {
		slog.WarnContext(ctx, "Ignoring gateway status",
			"order_id", o.ID,
			"gateway_status", u.Status,
			"order_status", o.Status,
			"payment_status", o.Payment.Status,
			"error", err,
		)

		return &Outcome{Order: o, Status: u.Status}, nil
	}
	if err != nil {
		return nil, err
	}
	if !effect.Changed {
		return &Outcome{Order: o, Status: u.Status}, nil
	}

	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := work.Rollback(ctx); rbErr != nil && err == nil {
			err = rbErr
		}
	}()

	if err := work.OrderRepository().Update(ctx, o); err != nil {
		return nil, err
	}

	if effect.Approved && s.invoicesEnabled {
		if err := s.requestInvoice(ctx, work, o, now); err != nil {
			return nil, err
		}
	}

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Payment status applied",
		"order_id", o.ID,
		"order_number", o.OrderNumber,
		"gateway_status", u.Status,
		"order_status", o.Status,
		"payment_status", o.Payment.Status,
	)

	return &Outcome{Order: o, Applied: true, Status: u.Status}, nil
}

// requestInvoice reserves the invoice marker and queues the request when the marker is new.
func (s *PaymentService) requestInvoice(ctx context.Context, work uow.UnitOfWork, o *order.Order, now time.Time) error {
	paymentID := o.Payment.GatewayPaymentID
	reserved, err := work.NotificationRepository().Reserve(ctx, o.ID, paymentID, now)
	if err != nil {
		return err
	}
	if !reserved {
		slog.InfoContext(ctx, "Invoice already requested", "order_id", o.ID, "payment_id", paymentID)

		return nil
	}

	payload, err := json.Marshal(notification.InvoiceRequested{OrderID: o.ID, PaymentID: paymentID})
	if err != nil {
		return fmt.Errorf("failed to marshal invoice request: %w", err)
	}

	return work.OutboxRepository().Insert(ctx, outbox.OutboxMessage{
		QueueName:   s.invoiceQueue,
		RoutingKey:  s.invoiceQueue,
		Payload:     payload,
		ContentType: "application/json",
		MaxRetries:  invoiceMaxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
		NextRetryAt: now,
	})
}
