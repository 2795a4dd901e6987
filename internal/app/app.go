package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/cache"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/dal/rabbitmq"
	outboxrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/outbox/postgres"
	"github.com/corray333/backend-labs/checkout/internal/gateway/mercadopago"
	"github.com/corray333/backend-labs/checkout/internal/mailer"
	"github.com/corray333/backend-labs/checkout/internal/otel"
	"github.com/corray333/backend-labs/checkout/internal/service/services/checkoutsvc"
	"github.com/corray333/backend-labs/checkout/internal/service/services/notifysvc"
	"github.com/corray333/backend-labs/checkout/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/checkout/internal/service/services/paymentsvc"
	"github.com/corray333/backend-labs/checkout/internal/transport/consumer"
	grpctransport "github.com/corray333/backend-labs/checkout/internal/transport/grpc"
	httptransport "github.com/corray333/backend-labs/checkout/internal/transport/http"
	expiryworker "github.com/corray333/backend-labs/checkout/internal/worker/expiry"
	outboxworker "github.com/corray333/backend-labs/checkout/internal/worker/outbox"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	checkoutSvc     *checkoutsvc.CheckoutService
	paymentSvc      *paymentsvc.PaymentService
	orderSvc        *ordersvc.OrderService
	httpTransport   *httptransport.HTTPTransport
	grpcTransport   *grpctransport.GRPCTransport
	invoiceConsumer *consumer.Consumer
	outboxWorker    *outboxworker.Worker
	expiryWorker    *expiryworker.Worker
	redisCache      *cache.Cache
	rabbitMqClient  *rabbitmq.Client
	postgresClient  *postgres.Client
	otelController  *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()
	rabbitMqClient := rabbitmq.MustNewClient()

	gateway, err := mercadopago.NewClient(
		viper.GetString("mercadopago.access_token"),
		mercadopago.WithTimeout(secondsOr("mercadopago.timeout_seconds", 5)),
	)
	if err != nil {
		panic(err)
	}

	frontendURL := viper.GetString("frontend.url")

	checkoutOpts := []checkoutsvc.Option{
		checkoutsvc.WithPostgresClient(postgresClient),
		checkoutsvc.WithGateway(gateway),
		checkoutsvc.WithInvalidPricePolicy(mustPricePolicy()),
		checkoutsvc.WithFrontendURL(frontendURL),
		checkoutsvc.WithNotificationURL(viper.GetString("checkout.notification_url")),
		checkoutsvc.WithStoreName(viper.GetString("store.name")),
		checkoutsvc.WithLocation(location()),
		checkoutsvc.WithExpiry(time.Duration(viper.GetInt("orders.expiry_hours")) * time.Hour),
	}
	if amount, ok := decimalKey("checkout.minimum_order_amount"); ok {
		checkoutOpts = append(checkoutOpts, checkoutsvc.WithMinimumOrderAmount(amount))
	}
	if price, ok := decimalKey("checkout.fallback_price"); ok {
		checkoutOpts = append(checkoutOpts, checkoutsvc.WithFallbackPrice(price))
	}
	if prefix := viper.GetString("orders.number.prefix"); prefix != "" {
		checkoutOpts = append(checkoutOpts, checkoutsvc.WithOrderNumberPrefix(prefix))
	}

	var redisCache *cache.Cache
	if viper.GetBool("redis.enabled") {
		redisCache = cache.MustNewCache(otel.ServiceName)
		checkoutOpts = append(checkoutOpts, checkoutsvc.WithIdempotencyCache(
			redisCache,
			time.Duration(viper.GetInt("checkout.idempotency_ttl_hours"))*time.Hour,
		))
	}

	checkoutSvc := checkoutsvc.MustNewCheckoutService(checkoutOpts...)

	invoicesEnabled := viper.GetBool("email.send_invoice")
	invoiceQueue := viper.GetString("rabbitmq.invoice.queue")

	paymentSvc := paymentsvc.MustNewPaymentService(
		paymentsvc.WithPostgresClient(postgresClient),
		paymentsvc.WithGateway(gateway),
		paymentsvc.WithInvoices(invoicesEnabled, invoiceQueue),
		paymentsvc.WithFrontendURL(frontendURL),
	)

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
	)

	httpTransport := httptransport.NewHTTPTransport(checkoutSvc, paymentSvc, orderSvc)
	httpTransport.RegisterRoutes()

	grpcTransport := grpctransport.NewGRPCTransport()

	var invoiceConsumer *consumer.Consumer
	if invoicesEnabled {
		notifySvc := notifysvc.MustNewNotifyService(
			notifysvc.WithPostgresClient(postgresClient),
			notifysvc.WithMailer(mailer.MustNewSender()),
		)
		invoiceConsumer = consumer.NewConsumer(rabbitMqClient, notifySvc)
	}

	outboxWorker := outboxworker.NewWorker(outboxrepo.NewOutboxRepository(postgresClient.Pool()), rabbitMqClient)
	expiryWorker := expiryworker.NewWorker(orderSvc)

	return &App{
		checkoutSvc:     checkoutSvc,
		paymentSvc:      paymentSvc,
		orderSvc:        orderSvc,
		httpTransport:   httpTransport,
		grpcTransport:   grpcTransport,
		invoiceConsumer: invoiceConsumer,
		outboxWorker:    outboxWorker,
		expiryWorker:    expiryWorker,
		redisCache:      redisCache,
		rabbitMqClient:  rabbitMqClient,
		postgresClient:  postgresClient,
		otelController:  otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		slog.Info("Starting HTTP server", "port", viper.GetString("server.http.port"))
		if err := a.httpTransport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		if err := a.grpcTransport.Run(); err != nil {
			slog.Error("gRPC server error", "error", err)
		}
	}()

	if a.invoiceConsumer != nil {
		go func() {
			slog.Info("Starting invoice consumer")
			if err := a.invoiceConsumer.Run(ctx); err != nil {
				slog.Error("Consumer error", "error", err)
			}
		}()
	}

	go func() {
		slog.Info("Starting outbox worker")
		a.outboxWorker.Start(ctx)
	}()

	go func() {
		slog.Info("Starting expiry worker")
		a.expiryWorker.Start(ctx)
	}()

	<-stop
	slog.Info("Shutdown signal received")

	a.gracefulShutdown()
	cancel()
}

// gracefulShutdown stops intake first, then background workers, then closes connections.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpTransport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.grpcTransport.Shutdown(ctx); err != nil {
		slog.Error("gRPC server shutdown error", "error", err)
	} else {
		slog.Info("gRPC server stopped gracefully")
	}

	a.outboxWorker.Stop()
	slog.Info("Outbox worker stopped gracefully")

	a.expiryWorker.Stop()
	slog.Info("Expiry worker stopped gracefully")

	if a.invoiceConsumer != nil {
		if err := a.invoiceConsumer.Shutdown(); err != nil {
			slog.Error("Consumer shutdown error", "error", err)
		} else {
			slog.Info("Consumer stopped gracefully")
		}
	}

	if err := a.rabbitMqClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			slog.Error("Redis connection close error", "error", err)
		} else {
			slog.Info("Redis connection closed gracefully")
		}
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(ctx); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	} else {
		slog.Info("Otel trace provider connection closed gracefully")
	}

	select {
	case <-ctx.Done():
		slog.Warn("Shutdown timeout exceeded")
	default:
		slog.Info("Application shutdown complete")
	}
}

func secondsOr(key string, def int) time.Duration {
	seconds := viper.GetInt(key)
	if seconds <= 0 {
		seconds = def
	}

	return time.Duration(seconds) * time.Second
}

func decimalKey(key string) (decimal.Decimal, bool) {
	raw := viper.GetString(key)
	if raw == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		panic("invalid decimal in " + key + ": " + err.Error())
	}

	return d, true
}

func mustPricePolicy() checkoutsvc.PricePolicy {
	policy, err := checkoutsvc.ParsePricePolicy(viper.GetString("checkout.invalid_price_policy"))
	if err != nil {
		panic(err)
	}

	return policy
}

func location() *time.Location {
	name := viper.GetString("orders.number.timezone")
	if name == "" {
		return time.Local
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("Unknown order number time zone, using local time", "timezone", name, "error", err)

		return time.Local
	}

	return loc
}
