package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/checkout/internal/service/models/notification"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const defaultQueue = "checkout.invoice.requested"

var errMalformedRequest = errors.New("malformed invoice request")

// service represents the service layer interface.
type service interface {
	SendInvoice(ctx context.Context, req notification.InvoiceRequested) error
}

// Consumer delivers invoice requests from RabbitMQ to the notify service.
type Consumer struct {
	client  *rabbitmq.Client
	service service
	queue   amqp.Queue
	stop    chan struct{}
	done    chan struct{}
}

// NewConsumer creates a new Consumer and declares its queue.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func NewConsumer(client *rabbitmq.Client, service service) *Consumer {
	queueName := viper.GetString("rabbitmq.invoice.queue")
	if queueName == "" {
		queueName = defaultQueue
	}

	queue, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:       queueName,
		Durable:    true,
		AutoDelete: false,
		Exclusive:  false,
		NoWait:     false,
	})
	if err != nil {
		panic(err)
	}

	return &Consumer{
		client:  client,
		service: service,
		queue:   queue,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run starts consuming messages from RabbitMQ.
func (c *Consumer) Run(ctx context.Context) error {
	consumerTag := viper.GetString("rabbitmq.consumer_tag")
	if consumerTag == "" {
		consumerTag = "checkout-svc"
	}

	msgs, err := c.client.Consume(rabbitmq.ConsumeConfig{
		Queue:    c.queue.Name,
		Consumer: consumerTag,
	})
	if err != nil {
		close(c.done)

		return err
	}

	slog.Info("Consumer started", "queue", c.queue.Name, "consumer_tag", consumerTag)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(50)

	go func() {
		defer close(c.done)
		for {
			select {
			case <-c.stop:
				slog.Info("Stopping consumer")

				return
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Info("Message channel closed")

					return
				}

				g.Go(func() error {
					_ = c.processMessage(gctx, msg)

					return nil
				})
			}
		}
	}()

	<-c.done

	return g.Wait()
}

// processMessage handles one delivery. Malformed bodies are dropped, failed sends are requeued.
func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) error {
	ctx, span := otel.Tracer("consumer").Start(ctx, "Consumer.processMessage")
	defer span.End()

	slog.InfoContext(ctx, "Received message", "delivery_tag", msg.DeliveryTag, "message_id", msg.MessageId)

	var req notification.InvoiceRequested
	if err := json.Unmarshal(msg.Body, &req); err != nil || req.OrderID == "" {
		if err == nil {
			err = errMalformedRequest
		}
		slog.ErrorContext(ctx, "Failed to unmarshal invoice request", "error", err)
		if err := msg.Nack(false, false); err != nil {
			slog.ErrorContext(ctx, "Failed to nack message", "error", err)
		}

		return err
	}

	if err := c.service.SendInvoice(ctx, req); err != nil {
		slog.ErrorContext(ctx, "Failed to send invoice", "error", err, "order_id", req.OrderID)
		if err := msg.Nack(false, true); err != nil {
			slog.ErrorContext(ctx, "Failed to nack message", "error", err)
		}

		return err
	}

	if err := msg.Ack(false); err != nil {
		slog.ErrorContext(ctx, "Failed to ack message", "error", err)

		return err
	}

	slog.InfoContext(ctx, "Message processed successfully", "order_id", req.OrderID)

	return nil
}

// Shutdown gracefully shuts down the consumer.
func (c *Consumer) Shutdown() error {
	slog.Info("Shutting down consumer")
	close(c.stop)

	select {
	case <-c.done:
		slog.Info("Consumer stopped successfully")
	case <-time.After(10 * time.Second):
		slog.Warn("Consumer shutdown timeout")
	}

	return nil
}
