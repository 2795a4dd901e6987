package paymentsvc

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/gateway/mercadopago"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/notification"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/checkout/internal/testutil/memstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeGateway struct {
	payments map[string]*mercadopago.Payment
	calls    int
	err      error
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (*mercadopago.Payment, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	p, ok := g.payments[id]
	if !ok {
		return nil, &mercadopago.Error{Op: "get payment", StatusCode: 404, Message: "not found"}
	}

	return p, nil
}

func (g *fakeGateway) set(id, status, ref string) {
	g.payments[id] = &mercadopago.Payment{
		ID:                json.Number(id),
		Status:            status,
		StatusDetail:      "accredited",
		ExternalReference: ref,
		PaymentMethodID:   "visa",
		PaymentTypeID:     "credit_card",
		Installments:      3,
		TransactionAmount: decimal.NewFromInt(1100),
	}
}

var fixedNow = time.Date(2026, 3, 7, 15, 4, 0, 0, time.UTC)

func seedOrder(store *memstore.Store) order.Order {
	o := order.Order{
		ID:          uuid.NewString(),
		OrderNumber: "ORD-260307-0001",
		Customer:    order.Customer{Name: "Ana", Email: "ana@example.com"},
		Items: []orderitem.OrderItem{
			{Name: "Remera", Price: decimal.NewFromInt(500), Quantity: 2},
		},
		Payment: order.Payment{
			Method:   order.MethodMercadoPago,
			Status:   order.PaymentPending,
			Currency: currency.Default,
		},
		ShippingCost: decimal.NewFromInt(100),
		Status:       order.StatusPending,
		Version:      1,
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}
	o.ExternalReference = o.ID
	o.CalculateTotals()
	store.Seed(o)

	return o
}

func newService(gw *fakeGateway, store *memstore.Store) *PaymentService {
	return MustNewPaymentService(
		WithUnitOfWork(store.Factory()),
		WithGateway(gw),
		WithInvoices(true, ""),
		WithFrontendURL("https://shop.example"),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func webhook(id string) Notification {
	return Notification{Type: "payment", Action: "payment.updated", DataID: id}
}

func TestReconcileWebhookApprovedIsIdempotent(t *testing.T) {
	store := memstore.New()
	seeded := seedOrder(store)
	gw := &fakeGateway{payments: map[string]*mercadopago.Payment{}}
	gw.set("9001", "approved", seeded.ID)
	svc := newService(gw, store)

	first, err := svc.ReconcileWebhook(context.Background(), webhook("9001"))
	if err != nil {
		t.Fatalf("first webhook: %v", err)
	}
	if !first.Applied {
		t.Error("first webhook was not applied")
	}

	second, err := svc.ReconcileWebhook(context.Background(), webhook("9001"))
	if err != nil {
		t.Fatalf("second webhook: %v", err)
	}
	if second.Applied {
		t.Error("duplicate webhook was applied again")
	}

	got, _ := store.Order(seeded.ID)
	if got.Status != order.StatusPaid || got.Payment.Status != order.PaymentApproved {
		t.Errorf("status = %s/%s, want paid/approved", got.Status, got.Payment.Status)
	}
	if got.Payment.PaidAt == nil || !got.Payment.PaidAt.Equal(fixedNow) {
		t.Errorf("paid at = %v", got.Payment.PaidAt)
	}
	if got.Payment.GatewayPaymentID != "9001" || got.Payment.PaymentMethodID != "visa" || got.Payment.Installments != 3 {
		t.Errorf("payment details = %+v", got.Payment)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}

	msgs := store.Outbox()
	if len(msgs) != 1 {
		t.Fatalf("outbox has %d messages, want 1", len(msgs))
	}
	if msgs[0].QueueName != DefaultInvoiceQueue || msgs[0].MaxRetries != invoiceMaxRetries {
		t.Errorf("outbox message = %+v", msgs[0])
	}
	var req notification.InvoiceRequested
	if err := json.Unmarshal(msgs[0].Payload, &req); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if req.OrderID != seeded.ID || req.PaymentID != "9001" {
		t.Errorf("invoice request = %+v", req)
	}
	if store.Notifications() != 1 {
		t.Errorf("notifications = %d, want 1", store.Notifications())
	}
}

func TestReconcileWebhookPendingThenApproved(t *testing.T) {
	store := memstore.New()
	seeded := seedOrder(store)
	gw := &fakeGateway{payments: map[string]*mercadopago.Payment{}}
	svc := newService(gw, store)

	gw.set("9002", "pending", seeded.ID)
	if _, err := svc.ReconcileWebhook(context.Background(), webhook("9002")); err != nil {
		t.Fatalf("pending webhook: %v", err)
	}
	got, _ := store.Order(seeded.ID)
	if got.Status != order.StatusPending || got.Payment.Status != order.PaymentInProcess {
		t.Errorf("after pending = %s/%s", got.Status, got.Payment.Status)
	}
	if n := len(store.Outbox()); n != 0 {
		t.Errorf("outbox has %d messages after pending", n)
	}

	gw.set("9002", "approved", seeded.ID)
	for i := 0; i < 3; i++ {
		if _, err := svc.ReconcileWebhook(context.Background(), webhook("9002")); err != nil {
			t.Fatalf("approved webhook %d: %v", i, err)
		}
	}
	if n := len(store.Outbox()); n != 1 {
		t.Errorf("outbox has %d messages, want 1", n)
	}
}

func TestReconcileWebhookRejected(t *testing.T) {
	store := memstore.New()
	seeded := seedOrder(store)
	gw := &fakeGateway{payments: map[string]*mercadopago.Payment{}}
	gw.set("9003", "rejected", seeded.ID)
	svc := newService(gw, store)

	if _, err := svc.ReconcileWebhook(context.Background(), webhook("9003")); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	got, _ := store.Order(seeded.ID)
	if got.Status != order.StatusCancelled || got.Payment.Status != order.PaymentRejected {
		t.Errorf("status = %s/%s, want cancelled/rejected", got.Status, got.Payment.Status)
	}
	if got.CancelledAt == nil {
		t.Error("cancelled at not stamped")
	}
	if n := len(store.Outbox()); n != 0 {
		t.Errorf("outbox has %d messages", n)
	}
}

func TestReconcileWebhookIgnoresOtherTopics(t *testing.T) {
	store := memstore.New()
	gw := &fakeGateway{payments: map[string]*mercadopago.Payment{}}
	svc := newService(gw, store)

	out, err := svc.ReconcileWebhook(context.Background(), Notification{Type: "merchant_order", DataID: "1"})
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if out.Applied || gw.calls != 0 {
		t.Errorf("applied = %v, gateway calls = %d", out.Applied, gw.calls)
	}

	if _, err := svc.ReconcileWebhook(context.Background(), Notification{Type: "payment"}); !errors.Is(err, ErrMissingPaymentID) {
		t.Errorf("missing id error = %v", err)
	}
}

func TestReconcileWebhookErrors(t *testing.T) {
	t.Run("unknown order", func(t *testing.T) {
		store := memstore.New()
		gw := &fakeGateway{payments: map[string]*mercadopago.Payment{}}
		gw.set("1", "approved", uuid.NewString())
		gw.set("2", "approved", "legacy-ref")
		svc := newService(gw, store)

		for _, id := range []string{"1", "2"} {
			if _, err := svc.ReconcileWebhook(context.Background(), webhook(id)); !errors.Is(err, order.ErrNotFound) {
				t.Errorf("payment %s error = %v, want ErrNotFound", id, err)
			}
		}
	})

	t.Run("gateway failure", func(t *testing.T) {
		store := memstore.New()
		gw := &fakeGateway{err: &mercadopago.Error{Op: "get payment", StatusCode: 503}}
		svc := newService(gw, store)

		_, err := svc.ReconcileWebhook(context.Background(), webhook("1"))
		var gwErr *mercadopago.Error
		if !errors.As(err, &gwErr) || gwErr.StatusCode != 503 {
			t.Errorf("error = %v, want gateway error", err)
		}
		if !errors.Is(err, ErrGatewayLookup) {
			t.Errorf("error = %v, want ErrGatewayLookup", err)
		}
	})

	t.Run("payment unknown to gateway", func(t *testing.T) {
		gw := &fakeGateway{payments: map[string]*mercadopago.Payment{}}
		svc := newService(gw, memstore.New())

		if _, err := svc.ReconcileWebhook(context.Background(), webhook("404")); !errors.Is(err, ErrGatewayLookup) {
			t.Errorf("error = %v, want ErrGatewayLookup", err)
		}
	})

	t.Run("version conflict", func(t *testing.T) {
		store := memstore.New()
		seeded := seedOrder(store)
		gw := &fakeGateway{payments: map[string]*mercadopago.Payment{}}
		gw.set("9004", "approved", seeded.ID)
		store.BeforeUpdate = func(o *order.Order) error {
			concurrent := seeded
			concurrent.Items = nil
			concurrent.Version = o.Version + 1
			store.Seed(concurrent)

			return nil
		}
		svc := newService(gw, store)

		if _, err := svc.ReconcileWebhook(context.Background(), webhook("9004")); !errors.Is(err, order.ErrVersionConflict) {
			t.Errorf("error = %v, want ErrVersionConflict", err)
		}
		if n := len(store.Outbox()); n != 0 {
			t.Errorf("outbox has %d messages", n)
		}
	})

	t.Run("outbox failure rolls back", func(t *testing.T) {
		store := memstore.New()
		seeded := seedOrder(store)
		gw := &fakeGateway{payments: map[string]*mercadopago.Payment{}}
		gw.set("9005", "approved", seeded.ID)
		store.OutboxInsertErr = errors.New("disk full")
		svc := newService(gw, store)

		if _, err := svc.ReconcileWebhook(context.Background(), webhook("9005")); err == nil {
			t.Fatal("expected error")
		}

		got, _ := store.Order(seeded.ID)
		if got.Status != order.StatusPending || got.Version != 1 {
			t.Errorf("order = %s v%d, want untouched", got.Status, got.Version)
		}
		if store.Notifications() != 0 {
			t.Errorf("notifications = %d, want 0", store.Notifications())
		}
	})
}

func TestReconcileWebhookIllegalTransition(t *testing.T) {
	store := memstore.New()
	seeded := seedOrder(store)
	seeded.Items = nil
	seeded.Status = order.StatusRefunded
	seeded.Payment.Status = order.PaymentRefunded
	seeded.Payment.GatewayStatus = "refunded"
	store.Seed(seeded)

	gw := &fakeGateway{payments: map[string]*mercadopago.Payment{}}
	gw.set("9006", "approved", seeded.ID)
	svc := newService(gw, store)

	out, err := svc.ReconcileWebhook(context.Background(), webhook("9006"))
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if out.Applied {
		t.Error("illegal transition was applied")
	}
	got, _ := store.Order(seeded.ID)
	if got.Status != order.StatusRefunded || got.Version != 1 {
		t.Errorf("order = %s v%d, want refunded v1", got.Status, got.Version)
	}
}

func TestReconcileWebhookInvoicesDisabled(t *testing.T) {
	store := memstore.New()
	seeded := seedOrder(store)
	gw := &fakeGateway{payments: map[string]*mercadopago.Payment{}}
	gw.set("9007", "approved", seeded.ID)
	svc := MustNewPaymentService(
		WithUnitOfWork(store.Factory()),
		WithGateway(gw),
		WithClock(func() time.Time { return fixedNow }),
	)

	if _, err := svc.ReconcileWebhook(context.Background(), webhook("9007")); err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if n := len(store.Outbox()); n != 0 {
		t.Errorf("outbox has %d messages, want 0", n)
	}
}

func TestReconcileRedirect(t *testing.T) {
	store := memstore.New()
	seeded := seedOrder(store)
	gw := &fakeGateway{payments: map[string]*mercadopago.Payment{}}
	gw.set("9010", "approved", seeded.ID)
	svc := newService(gw, store)

	t.Run("success", func(t *testing.T) {
		target := svc.ReconcileRedirect(context.Background(), RedirectSuccess, "9010", "")
		u, err := url.Parse(target)
		if err != nil {
			t.Fatalf("parse %q: %v", target, err)
		}
		if u.Path != "/payment/success" {
			t.Errorf("path = %q", u.Path)
		}
		q := u.Query()
		if q.Get("orderId") != seeded.ID || q.Get("orderNumber") != seeded.OrderNumber ||
			q.Get("paymentId") != "9010" || q.Get("status") != "approved" {
			t.Errorf("query = %v", q)
		}

		got, _ := store.Order(seeded.ID)
		if got.Status != order.StatusPaid {
			t.Errorf("status = %s, want paid", got.Status)
		}
	})

	t.Run("missing payment id", func(t *testing.T) {
		target := svc.ReconcileRedirect(context.Background(), RedirectSuccess, "", seeded.ID)
		if !strings.HasSuffix(target, "/payment/failure?error=payment_id_missing") {
			t.Errorf("target = %q", target)
		}
	})

	t.Run("unknown order stays on pending page", func(t *testing.T) {
		target := svc.ReconcileRedirect(context.Background(), RedirectPending, "", uuid.NewString())
		if !strings.HasSuffix(target, "/payment/pending?error=order_not_found") {
			t.Errorf("target = %q", target)
		}
	})

	t.Run("unknown order on failure page", func(t *testing.T) {
		target := svc.ReconcileRedirect(context.Background(), RedirectFailure, "", "")
		if !strings.HasSuffix(target, "/payment/failure?error=order_not_found") {
			t.Errorf("target = %q", target)
		}
	})

	t.Run("gateway failure", func(t *testing.T) {
		failing := newService(&fakeGateway{err: errors.New("boom")}, store)
		target := failing.ReconcileRedirect(context.Background(), RedirectSuccess, "9010", seeded.ID)
		if !strings.HasSuffix(target, "error=server_error") {
			t.Errorf("target = %q", target)
		}
	})
}

func TestReconcileRedirectFailureCancelsOrder(t *testing.T) {
	store := memstore.New()
	seeded := seedOrder(store)
	gw := &fakeGateway{payments: map[string]*mercadopago.Payment{}}
	svc := newService(gw, store)

	target := svc.ReconcileRedirect(context.Background(), RedirectFailure, "", seeded.ID)
	if !strings.Contains(target, "/payment/failure?") || !strings.Contains(target, "status=rejected") {
		t.Errorf("target = %q", target)
	}
	if gw.calls != 0 {
		t.Errorf("gateway called %d times", gw.calls)
	}

	got, _ := store.Order(seeded.ID)
	if got.Status != order.StatusCancelled || got.Payment.Status != order.PaymentRejected {
		t.Errorf("status = %s/%s", got.Status, got.Payment.Status)
	}
}

func TestReconcileRedirectUsesGatewayReference(t *testing.T) {
	store := memstore.New()
	paid := seedOrder(store)
	other := seedOrder(store)
	gw := &fakeGateway{payments: map[string]*mercadopago.Payment{}}
	gw.set("777", "approved", paid.ID)
	svc := newService(gw, store)

	target := svc.ReconcileRedirect(context.Background(), RedirectSuccess, "777", other.ID)
	if !strings.HasSuffix(target, "/payment/failure?error=order_not_found") {
		t.Errorf("target = %q", target)
	}

	for _, id := range []string{paid.ID, other.ID} {
		got, _ := store.Order(id)
		if got.Status != order.StatusPending || got.Payment.Status != order.PaymentPending || got.Version != 1 {
			t.Errorf("order %s = %s/%s v%d, want untouched", id, got.Status, got.Payment.Status, got.Version)
		}
	}
	if n := len(store.Outbox()); n != 0 {
		t.Errorf("outbox has %d messages, want 0", n)
	}

	target = svc.ReconcileRedirect(context.Background(), RedirectSuccess, "777", paid.ID)
	if !strings.Contains(target, "/payment/success?") {
		t.Errorf("matching reference target = %q", target)
	}
	if got, _ := store.Order(other.ID); got.Status != order.StatusPending {
		t.Errorf("other order status = %s, want pending", got.Status)
	}
}
