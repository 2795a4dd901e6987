package checkoutsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/dal/uow"
	"github.com/corray333/backend-labs/checkout/internal/gateway/mercadopago"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

const idempotencyOperation = "checkout"

type gateway interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
}

type cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GenerateKey(operation, key string) string
}

// Result is what the storefront needs to send the buyer to the gateway.
type Result struct {
	PreferenceID     string       `json:"preferenceId"`
	InitPoint        string       `json:"initPoint"`
	SandboxInitPoint string       `json:"sandboxInitPoint"`
	Order            *order.Order `json:"order"`
}

// CheckoutService creates pending orders and their checkout intents.
type CheckoutService struct {
	newUOW         uow.Factory
	gateway        gateway
	cache          cache
	idempotencyTTL time.Duration

	minimumAmount   decimal.Decimal
	pricePolicy     PricePolicy
	fallbackPrice   decimal.Decimal
	frontendURL     string
	notificationURL string
	storeName       string
	numberPrefix    string
	location        *time.Location
	expiry          time.Duration
	now             func() time.Time
}

// Option configures the CheckoutService.
type Option func(*CheckoutService)

// MustNewCheckoutService creates a new CheckoutService.
func MustNewCheckoutService(opts ...Option) *CheckoutService {
	s := &CheckoutService{
		idempotencyTTL: 24 * time.Hour,
		minimumAmount:  decimal.NewFromInt(100),
		pricePolicy:    PolicyReject,
		fallbackPrice:  decimal.NewFromInt(1000),
		numberPrefix:   order.DefaultNumberPrefix,
		location:       time.Local,
		expiry:         order.DefaultExpiry,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("checkoutsvc: unit of work is not configured")
	}
	if s.gateway == nil {
		panic("checkoutsvc: payment gateway is not configured")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the CheckoutService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) Option {
	return func(s *CheckoutService) {
		s.newUOW = uow.NewFactory(pgClient)
	}
}

// WithUnitOfWork sets the unit of work factory for the CheckoutService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(f uow.Factory) Option {
	return func(s *CheckoutService) {
		s.newUOW = f
	}
}

// WithGateway sets the payment gateway.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithGateway(g gateway) Option {
	return func(s *CheckoutService) {
		s.gateway = g
	}
}

// WithIdempotencyCache enables idempotency keys backed by c.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithIdempotencyCache(c cache, ttl time.Duration) Option {
	return func(s *CheckoutService) {
		s.cache = c
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithMinimumOrderAmount sets the smallest accepted total.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMinimumOrderAmount(amount decimal.Decimal) Option {
	return func(s *CheckoutService) {
		s.minimumAmount = amount
	}
}

// WithInvalidPricePolicy sets how items with invalid prices are handled.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithInvalidPricePolicy(p PricePolicy) Option {
	return func(s *CheckoutService) {
		s.pricePolicy = p
	}
}

// WithFallbackPrice sets the price substituted under PolicyFallback.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithFallbackPrice(price decimal.Decimal) Option {
	return func(s *CheckoutService) {
		s.fallbackPrice = price
	}
}

// WithFrontendURL sets the storefront root used for back URLs.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithFrontendURL(u string) Option {
	return func(s *CheckoutService) {
		s.frontendURL = strings.TrimRight(u, "/")
	}
}

// WithNotificationURL sets the webhook URL announced to the gateway.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithNotificationURL(u string) Option {
	return func(s *CheckoutService) {
		s.notificationURL = u
	}
}

// WithStoreName sets the statement descriptor.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithStoreName(name string) Option {
	return func(s *CheckoutService) {
		s.storeName = name
	}
}

// WithOrderNumberPrefix overrides the order number prefix.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOrderNumberPrefix(prefix string) Option {
	return func(s *CheckoutService) {
		s.numberPrefix = prefix
	}
}

// WithLocation sets the time zone that decides the order number day.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithLocation(loc *time.Location) Option {
	return func(s *CheckoutService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithExpiry sets how long an unpaid order lives.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithExpiry(d time.Duration) Option {
	return func(s *CheckoutService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithClock replaces time.Now.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) Option {
	return func(s *CheckoutService) {
		s.now = now
	}
}

// CreateCheckout validates cart, persists a pending order and creates its checkout intent.
// A non-empty idempotencyKey makes repeated calls return the first result.
func (s *CheckoutService) CreateCheckout(ctx context.Context, cart Cart, idempotencyKey string) (*Result, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.CreateCheckout")
	defer span.End()

	cacheKey := ""
	if s.cache != nil && idempotencyKey != "" {
		cacheKey = s.cache.GenerateKey(idempotencyOperation, idempotencyKey)
		if cached := s.cachedResult(ctx, cacheKey); cached != nil {
			slog.InfoContext(ctx, "Returning cached checkout", "idempotency_key", idempotencyKey, "order_id", cached.Order.ID)

			return cached, nil
		}
	}

	o, err := s.buildOrder(cart)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, o); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Order created", "order_id", o.ID, "order_number", o.OrderNumber, "total", o.Total.String())

	result, err := s.attachPreference(ctx, o)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		payload, err := json.Marshal(result)
		if err == nil {
			err = s.cache.Set(ctx, cacheKey, payload, s.idempotencyTTL)
		}
		if err != nil {
			slog.WarnContext(ctx, "Failed to cache checkout result", "idempotency_key", idempotencyKey, "error", err)
		}
	}

	return result, nil
}

// RetryIntent creates a new checkout intent for a pending, unpaid order.
func (s *CheckoutService) RetryIntent(ctx context.Context, orderID string) (*Result, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "Service.RetryIntent")
	defer span.End()

	if _, err := uuid.Parse(orderID); err != nil {
		return nil, order.ErrNotFound
	}

	o, err := s.newUOW().OrderRepository().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status != order.StatusPending || o.Payment.Status == order.PaymentApproved {
		return nil, fmt.Errorf("%w: order %s is %s with payment %s", order.ErrIllegalTransition, o.ID, o.Status, o.Payment.Status)
	}

	return s.attachPreference(ctx, o)
}

func (s *CheckoutService) cachedResult(ctx context.Context, key string) *Result {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read idempotency cache", "key", key, "error", err)

		return nil
	}
	if raw == "" {
		return nil
	}

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil || result.Order == nil {
		slog.WarnContext(ctx, "Discarding malformed cached checkout", "key", key, "error", err)

		return nil
	}

	return &result
}

func (s *CheckoutService) buildOrder(cart Cart) (*order.Order, error) {
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	customer := cart.Customer
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Email = strings.ToLower(strings.TrimSpace(customer.Email))
	if customer.Name == "" || customer.Email == "" {
		return nil, ErrIncompleteCustomer
	}

	if cart.Discount.IsNegative() || cart.ShippingCost.IsNegative() {
		return nil, ErrNegativeAdjustments
	}

	items, err := sanitizeItems(cart.Items, s.pricePolicy, s.fallbackPrice)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.expiry)
	shipping := cart.Shipping
	if shipping.Method == "" {
		shipping.Method = order.ShippingStandard
	}
	source := cart.Source
	if source == "" {
		source = order.SourceWeb
	}

	o := &order.Order{
		ID:       uuid.NewString(),
		Customer: customer,
		Items:    items,
		Shipping: shipping,
		Payment: order.Payment{
			Method:   order.MethodMercadoPago,
			Status:   order.PaymentPending,
			Currency: currency.Default,
		},
		Discount:     cart.Discount,
		ShippingCost: cart.ShippingCost,
		Tax:          decimal.Zero,
		Status:       order.StatusPending,
		Notes:        cart.Notes,
		Source:       source,
		Metadata:     cart.Metadata,
		IPAddress:    cart.IPAddress,
		UserAgent:    cart.UserAgent,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    &expiresAt,
	}
	o.ExternalReference = o.ID

	if total := o.CalculateTotals(); total.LessThan(s.minimumAmount) {
		return nil, &ValidationError{
			Message: fmt.Sprintf("minimum order amount is $%s", s.minimumAmount.String()),
		}
	}

	return o, nil
}

// persist allocates the order number and writes the order with its items in one transaction.
func (s *CheckoutService) persist(ctx context.Context, o *order.Order) (err error) {
	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := work.Rollback(ctx); rbErr != nil && err == nil {
			err = rbErr
		}
	}()

	day := order.Day(o.CreatedAt, s.location)
	seq, err := work.OrderNumberRepository().Next(ctx, day)
	if err != nil {
		return err
	}
	o.OrderNumber = order.FormatNumber(s.numberPrefix, day, seq)

	if err := work.OrderRepository().Insert(ctx, o); err != nil {
		return err
	}

	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		o.Items[i].CreatedAt = o.CreatedAt
	}
	items, err := work.OrderItemRepository().BulkInsert(ctx, o.Items)
	if err != nil {
		return err
	}
	o.Items = items

	return work.Commit(ctx)
}

func (s *CheckoutService) attachPreference(ctx context.Context, o *order.Order) (*Result, error) {
	req := mercadopago.PreferenceRequest{
		Items: make([]mercadopago.Item, 0, len(o.Items)),
		Payer: mercadopago.Payer{
			Email: o.Customer.Email,
			Name:  o.Customer.Name,
		},
		BackURLs: mercadopago.BackURLs{
			Success: s.frontendURL + "/payment/success",
			Failure: s.frontendURL + "/payment/failure",
			Pending: s.frontendURL + "/payment/pending",
		},
		NotificationURL:     s.notificationURL,
		ExternalReference:   o.ID,
		StatementDescriptor: s.storeName,
	}
	for _, item := range o.Items {
		req.Items = append(req.Items, mercadopago.Item{
			Title:      item.Name,
			UnitPrice:  item.Price.InexactFloat64(),
			Quantity:   item.Quantity,
			CurrencyID: o.Payment.Currency.String(),
		})
	}

	pref, err := s.gateway.CreatePreference(ctx, req)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to create payment preference", "order_id", o.ID, "error", err)

		return nil, fmt.Errorf("failed to create preference for order %s: %w", o.ID, err)
	}

	o.PreferenceID = pref.ID
	o.InitPoint = pref.InitPoint
	o.SandboxInitPoint = pref.SandboxInitPoint
	o.ExternalReference = o.ID
	o.UpdatedAt = s.now()

	if err := s.newUOW().OrderRepository().Update(ctx, o); err != nil {
		return nil, err
	}

	return &Result{
		PreferenceID:     pref.ID,
		InitPoint:        pref.InitPoint,
		SandboxInitPoint: pref.SandboxInitPoint,
		Order:            o,
	}, nil
}
