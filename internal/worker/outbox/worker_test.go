package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	outboxmodel "github.com/corray333/backend-labs/checkout/internal/service/models/outbox"
	"github.com/corray333/backend-labs/checkout/internal/testutil/memstore"
	"github.com/streadway/amqp"
)

type fakePublisher struct {
	published []amqp.Publishing
	keys      []string
	err       error
}

func (p *fakePublisher) Publish(_, routingKey string, msg amqp.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	p.published = append(p.published, msg)

	return nil
}

func queueMessage(t *testing.T, store *memstore.Store) {
	t.Helper()

	now := time.Now().Add(-time.Second)
	err := store.Factory()().OutboxRepository().Insert(context.Background(), outboxmodel.OutboxMessage{
		QueueName:   "checkout.invoice.requested",
		RoutingKey:  "checkout.invoice.requested",
		Payload:     []byte(`{"order_id":"o1","payment_id":"p1"}`),
		ContentType: "application/json",
		MaxRetries:  5,
		CreatedAt:   now,
		UpdatedAt:   now,
		NextRetryAt: now,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

func TestProcessMessagesPublishesAndDeletes(t *testing.T) {
	store := memstore.New()
	queueMessage(t, store)
	pub := &fakePublisher{}
	w := NewWorker(store.Factory()().OutboxRepository(), pub)

	w.processMessages(context.Background())

	if len(pub.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.published))
	}
	if pub.keys[0] != "checkout.invoice.requested" || pub.published[0].DeliveryMode != amqp.Persistent {
		t.Errorf("published key = %q mode = %d", pub.keys[0], pub.published[0].DeliveryMode)
	}
	if pub.published[0].MessageId != "1" {
		t.Errorf("message id = %q", pub.published[0].MessageId)
	}
	if n := len(store.Outbox()); n != 0 {
		t.Errorf("outbox has %d messages after publish", n)
	}
}

func TestProcessMessagesSchedulesRetry(t *testing.T) {
	store := memstore.New()
	queueMessage(t, store)
	pub := &fakePublisher{err: errors.New("channel closed")}
	w := NewWorker(store.Factory()().OutboxRepository(), pub)
	now := time.Date(2026, 3, 7, 15, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	w.processMessages(context.Background())

	msgs := store.Outbox()
	if len(msgs) != 1 {
		t.Fatalf("outbox has %d messages, want 1", len(msgs))
	}
	if msgs[0].RetryCount != 1 || msgs[0].LastError != "channel closed" {
		t.Errorf("retry count = %d last error = %q", msgs[0].RetryCount, msgs[0].LastError)
	}
	if want := now.Add(60 * time.Second); !msgs[0].NextRetryAt.Equal(want) {
		t.Errorf("next retry = %v, want %v", msgs[0].NextRetryAt, want)
	}
}

func TestBackoff(t *testing.T) {
	w := &Worker{retryInterval: 30 * time.Second}
	for retry, want := range map[int]time.Duration{
		1: time.Minute,
		2: 2 * time.Minute,
		3: 4 * time.Minute,
	} {
		if got := w.backoff(retry); got != want {
			t.Errorf("backoff(%d) = %v, want %v", retry, got, want)
		}
	}
}
