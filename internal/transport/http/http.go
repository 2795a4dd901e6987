package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/services/checkoutsvc"
	"github.com/corray333/backend-labs/checkout/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/checkout/internal/service/services/paymentsvc"
	createpreference "github.com/corray333/backend-labs/checkout/internal/transport/http/create_preference"
	customerorders "github.com/corray333/backend-labs/checkout/internal/transport/http/customer_orders"
	getorder "github.com/corray333/backend-labs/checkout/internal/transport/http/get_order"
	listorders "github.com/corray333/backend-labs/checkout/internal/transport/http/list_orders"
	orderstats "github.com/corray333/backend-labs/checkout/internal/transport/http/order_stats"
	paymentmethods "github.com/corray333/backend-labs/checkout/internal/transport/http/payment_methods"
	paymentredirect "github.com/corray333/backend-labs/checkout/internal/transport/http/payment_redirect"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/response"
	retrypreference "github.com/corray333/backend-labs/checkout/internal/transport/http/retry_preference"
	updatestatus "github.com/corray333/backend-labs/checkout/internal/transport/http/update_status"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/webhook"
	"github.com/corray333/backend-labs/checkout/pkg/http/middleware/auth"
	"github.com/corray333/backend-labs/checkout/pkg/http/middleware/signature"
	"github.com/corray333/backend-labs/checkout/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/checkout/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
)

type checkoutService interface {
	CreateCheckout(ctx context.Context, cart checkoutsvc.Cart, idempotencyKey string) (*checkoutsvc.Result, error)
	RetryIntent(ctx context.Context, orderID string) (*checkoutsvc.Result, error)
}

type paymentService interface {
	ReconcileWebhook(ctx context.Context, n paymentsvc.Notification) (*paymentsvc.Outcome, error)
	ReconcileRedirect(ctx context.Context, kind paymentsvc.RedirectKind, paymentID, externalRef string) string
}

type orderService interface {
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*order.Order, error)
	ListOrders(ctx context.Context, filter ordersvc.ListFilter) ([]order.Order, int64, error)
	ListCustomerOrders(ctx context.Context, email string) ([]order.Order, error)
	UpdateStatus(ctx context.Context, id, status, notes string) (*order.Order, error)
	Stats(ctx context.Context) (*order.Stats, error)
}

type HTTPTransport struct {
	server    *http.Server
	router    *chi.Mux
	checkout  checkoutService
	payments  paymentService
	orders    orderService
	catalogue paymentmethods.Catalogue
}

//goland:noinspection GoExportedFuncWithUnexportedType
func NewHTTPTransport(checkout checkoutService, payments paymentService, orders orderService) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	return &HTTPTransport{
		server:    server,
		router:    router,
		checkout:  checkout,
		payments:  payments,
		orders:    orders,
		catalogue: paymentmethods.NewCatalogue(),
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Get("/healthz", h.healthz)

	h.router.Route("/api", func(r chi.Router) {
		r.Route("/payments", func(r chi.Router) {
			r.Post("/create-preference", h.createPreference)
			r.Post("/orders/{id}/preference", h.retryPreference)
			r.With(signature.NewSignatureMiddleware(viper.GetString("mercadopago.webhook_secret"))).
				Post("/webhook", h.webhook)
			r.Get("/success", paymentredirect.NewHandler(paymentsvc.RedirectSuccess, h.payments))
			r.Get("/failure", paymentredirect.NewHandler(paymentsvc.RedirectFailure, h.payments))
			r.Get("/pending", paymentredirect.NewHandler(paymentsvc.RedirectPending, h.payments))
			r.Get("/order/{id}", h.getOrder)
			r.Get("/methods", h.paymentMethods)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(auth.NewAuthMiddleware(viper.GetString("auth.jwt_secret"), auth.RoleAdmin))
			r.Get("/", h.listOrders)
			r.Get("/stats/summary", h.orderStats)
			r.Get("/customer/{email}", h.customerOrders)
			r.Get("/number/{orderNumber}", h.orderByNumber)
			r.Get("/{id}", h.adminOrder)
			r.Put("/{id}/status", h.updateStatus)
		})
	})
}

func (h *HTTPTransport) healthz(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

func (h *HTTPTransport) createPreference(w http.ResponseWriter, r *http.Request) {
	createpreference.CreatePreference(w, r, h.checkout)
}

func (h *HTTPTransport) retryPreference(w http.ResponseWriter, r *http.Request) {
	retrypreference.RetryPreference(w, r, h.checkout)
}

func (h *HTTPTransport) webhook(w http.ResponseWriter, r *http.Request) {
	webhook.Webhook(w, r, h.payments)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.orders)
}

func (h *HTTPTransport) paymentMethods(w http.ResponseWriter, r *http.Request) {
	paymentmethods.PaymentMethods(w, r, h.catalogue)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.orders)
}

func (h *HTTPTransport) orderStats(w http.ResponseWriter, r *http.Request) {
	orderstats.OrderStats(w, r, h.orders)
}

func (h *HTTPTransport) customerOrders(w http.ResponseWriter, r *http.Request) {
	customerorders.CustomerOrders(w, r, h.orders)
}

func (h *HTTPTransport) orderByNumber(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrderByNumber(w, r, h.orders)
}

func (h *HTTPTransport) adminOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetAdminOrder(w, r, h.orders)
}

func (h *HTTPTransport) updateStatus(w http.ResponseWriter, r *http.Request) {
	updatestatus.UpdateStatus(w, r, h.orders)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(trace.NewTraceMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(middleware.Recoverer)

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	readTimeout := viper.GetInt("server.http.read_timeout_seconds")
	if readTimeout == 0 {
		readTimeout = 15
	}

	return &http.Server{
		Addr:              "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler:           router,
		ReadHeaderTimeout: time.Duration(readTimeout) * time.Second,
	}
}
