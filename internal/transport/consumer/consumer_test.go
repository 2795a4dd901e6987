package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/corray333/backend-labs/checkout/internal/service/models/notification"
	"github.com/streadway/amqp"
)

type ackRecorder struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.acks++

	return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue

	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.nacks++
	a.requeue = requeue

	return nil
}

type fakeService struct {
	got []notification.InvoiceRequested
	err error
}

func (s *fakeService) SendInvoice(_ context.Context, req notification.InvoiceRequested) error {
	s.got = append(s.got, req)

	return s.err
}

func TestProcessMessage(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		serviceErr  error
		wantAcks    int
		wantNacks   int
		wantRequeue bool
		wantCalls   int
	}{
		{
			name:      "delivered",
			body:      `{"order_id":"o1","payment_id":"p1"}`,
			wantAcks:  1,
			wantCalls: 1,
		},
		{
			name:      "malformed json",
			body:      `{"order_id":`,
			wantNacks: 1,
		},
		{
			name:      "missing order id",
			body:      `{"payment_id":"p1"}`,
			wantNacks: 1,
		},
		{
			name:        "send failure is requeued",
			body:        `{"order_id":"o1","payment_id":"p1"}`,
			serviceErr:  errors.New("smtp down"),
			wantNacks:   1,
			wantRequeue: true,
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.serviceErr}
			c := &Consumer{service: svc}
			ack := &ackRecorder{}

			err := c.processMessage(context.Background(), amqp.Delivery{
				Acknowledger: ack,
				DeliveryTag:  1,
				Body:         []byte(tt.body),
			})

			if (err != nil) != (tt.wantAcks == 0) {
				t.Errorf("error = %v", err)
			}
			if ack.acks != tt.wantAcks || ack.nacks != tt.wantNacks || ack.requeue != tt.wantRequeue {
				t.Errorf("acks = %d nacks = %d requeue = %v", ack.acks, ack.nacks, ack.requeue)
			}
			if len(svc.got) != tt.wantCalls {
				t.Errorf("service calls = %d, want %d", len(svc.got), tt.wantCalls)
			}
			if tt.wantCalls > 0 && svc.got[0].OrderID != "o1" {
				t.Errorf("request = %+v", svc.got[0])
			}
		})
	}
}
