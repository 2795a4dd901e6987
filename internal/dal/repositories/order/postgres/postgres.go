package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	orderitemrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/orderitem/postgres"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var orderColumns = []string{
	"id",
	"order_number",
	"customer_name",
	"customer_email",
	"customer_phone",
	"customer_address",
	"customer_dni",
	"shipping_method",
	"shipping_address",
	"shipping_city",
	"shipping_province",
	"shipping_postal_code",
	"tracking_number",
	"payment_method",
	"payment_status",
	"gateway_payment_id",
	"gateway_status",
	"gateway_status_detail",
	"payment_method_id",
	"payment_type",
	"installments",
	"paid_amount",
	"currency",
	"paid_at",
	"subtotal",
	"discount",
	"shipping_cost",
	"tax",
	"total",
	"status",
	"notes",
	"internal_notes",
	"preference_id",
	"external_reference",
	"init_point",
	"sandbox_init_point",
	"source",
	"metadata",
	"ip_address",
	"user_agent",
	"version",
	"created_at",
	"updated_at",
	"delivered_at",
	"cancelled_at",
	"expires_at",
}

// OrderDal represents order data access layer model.
type OrderDal struct {
	ID                  string
	OrderNumber         string
	CustomerName        string
	CustomerEmail       string
	CustomerPhone       string
	CustomerAddress     string
	CustomerDNI         string
	ShippingMethod      string
	ShippingAddress     string
	ShippingCity        string
	ShippingProvince    string
	ShippingPostalCode  string
	TrackingNumber      string
	PaymentMethod       string
	PaymentStatus       string
	GatewayPaymentID    string
	GatewayStatus       string
	GatewayStatusDetail string
	PaymentMethodID     string
	PaymentType         string
	Installments        int
	PaidAmount          pgtype.Numeric
	Currency            string
	PaidAt              pgtype.Timestamptz
	Subtotal            pgtype.Numeric
	Discount            pgtype.Numeric
	ShippingCost        pgtype.Numeric
	Tax                 pgtype.Numeric
	Total               pgtype.Numeric
	Status              string
	Notes               string
	InternalNotes       string
	PreferenceID        string
	ExternalReference   string
	InitPoint           string
	SandboxInitPoint    string
	Source              string
	Metadata            map[string]any
	IPAddress           string
	UserAgent           string
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeliveredAt         pgtype.Timestamptz
	CancelledAt         pgtype.Timestamptz
	ExpiresAt           pgtype.Timestamptz
}

func (d *OrderDal) scanTargets() []any {
	return []any{
		&d.ID,
		&d.OrderNumber,
		&d.CustomerName,
		&d.CustomerEmail,
		&d.CustomerPhone,
		&d.CustomerAddress,
		&d.CustomerDNI,
		&d.ShippingMethod,
		&d.ShippingAddress,
		&d.ShippingCity,
		&d.ShippingProvince,
		&d.ShippingPostalCode,
		&d.TrackingNumber,
		&d.PaymentMethod,
		&d.PaymentStatus,
		&d.GatewayPaymentID,
		&d.GatewayStatus,
		&d.GatewayStatusDetail,
		&d.PaymentMethodID,
		&d.PaymentType,
		&d.Installments,
		&d.PaidAmount,
		&d.Currency,
		&d.PaidAt,
		&d.Subtotal,
		&d.Discount,
		&d.ShippingCost,
		&d.Tax,
		&d.Total,
		&d.Status,
		&d.Notes,
		&d.InternalNotes,
		&d.PreferenceID,
		&d.ExternalReference,
		&d.InitPoint,
		&d.SandboxInitPoint,
		&d.Source,
		&d.Metadata,
		&d.IPAddress,
		&d.UserAgent,
		&d.Version,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.DeliveredAt,
		&d.CancelledAt,
		&d.ExpiresAt,
	}
}

// ToModel converts OrderDal to service layer Order model.
func (d *OrderDal) ToModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(d.Currency)
	if err != nil {
		return nil, err
	}
	status, err := order.ParseStatus(d.Status)
	if err != nil {
		return nil, err
	}
	paymentStatus, err := order.ParsePaymentStatus(d.PaymentStatus)
	if err != nil {
		return nil, err
	}
	method, err := order.ParsePaymentMethod(d.PaymentMethod)
	if err != nil {
		return nil, err
	}
	shippingMethod, err := order.ParseShippingMethod(d.ShippingMethod)
	if err != nil {
		return nil, err
	}

	return &order.Order{
		ID:          d.ID,
		OrderNumber: d.OrderNumber,
		Customer: order.Customer{
			Name:    d.CustomerName,
			Email:   d.CustomerEmail,
			Phone:   d.CustomerPhone,
			Address: d.CustomerAddress,
			DNI:     d.CustomerDNI,
		},
		Items: []orderitem.OrderItem{},
		Shipping: order.Shipping{
			Method:         shippingMethod,
			Address:        d.ShippingAddress,
			City:           d.ShippingCity,
			Province:       d.ShippingProvince,
			PostalCode:     d.ShippingPostalCode,
			TrackingNumber: d.TrackingNumber,
		},
		Payment: order.Payment{
			Method:              method,
			Status:              paymentStatus,
			GatewayPaymentID:    d.GatewayPaymentID,
			GatewayStatus:       d.GatewayStatus,
			GatewayStatusDetail: d.GatewayStatusDetail,
			PaymentMethodID:     d.PaymentMethodID,
			PaymentType:         d.PaymentType,
			Installments:        d.Installments,
			PaidAmount:          postgres.Decimal(d.PaidAmount),
			Currency:            cur,
			PaidAt:              postgres.TimePtr(d.PaidAt),
		},
		Subtotal:          postgres.Decimal(d.Subtotal),
		Discount:          postgres.Decimal(d.Discount),
		ShippingCost:      postgres.Decimal(d.ShippingCost),
		Tax:               postgres.Decimal(d.Tax),
		Total:             postgres.Decimal(d.Total),
		Status:            status,
		Notes:             d.Notes,
		InternalNotes:     d.InternalNotes,
		PreferenceID:      d.PreferenceID,
		ExternalReference: d.ExternalReference,
		InitPoint:         d.InitPoint,
		SandboxInitPoint:  d.SandboxInitPoint,
		Source:            order.ParseSource(d.Source),
		Metadata:          d.Metadata,
		IPAddress:         d.IPAddress,
		UserAgent:         d.UserAgent,
		Version:           d.Version,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		DeliveredAt:       postgres.TimePtr(d.DeliveredAt),
		CancelledAt:       postgres.TimePtr(d.CancelledAt),
		ExpiresAt:         postgres.TimePtr(d.ExpiresAt),
	}, nil
}

// mutableValues returns every column an update may touch, keyed by column name.
func mutableValues(o *order.Order) map[string]any {
	metadata := o.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return map[string]any{
		"customer_name":         o.Customer.Name,
		"customer_email":        o.Customer.Email,
		"customer_phone":        o.Customer.Phone,
		"customer_address":      o.Customer.Address,
		"customer_dni":          o.Customer.DNI,
		"shipping_method":       string(o.Shipping.Method),
		"shipping_address":      o.Shipping.Address,
		"shipping_city":         o.Shipping.City,
		"shipping_province":     o.Shipping.Province,
		"shipping_postal_code":  o.Shipping.PostalCode,
		"tracking_number":       o.Shipping.TrackingNumber,
		"payment_method":        string(o.Payment.Method),
		"payment_status":        string(o.Payment.Status),
		"gateway_payment_id":    o.Payment.GatewayPaymentID,
		"gateway_status":        o.Payment.GatewayStatus,
		"gateway_status_detail": o.Payment.GatewayStatusDetail,
		"payment_method_id":     o.Payment.PaymentMethodID,
		"payment_type":          o.Payment.PaymentType,
		"installments":          o.Payment.Installments,
		"paid_amount":           postgres.Numeric(o.Payment.PaidAmount),
		"currency":              o.Payment.Currency.String(),
		"paid_at":               postgres.Timestamptz(o.Payment.PaidAt),
		"subtotal":              postgres.Numeric(o.Subtotal),
		"discount":              postgres.Numeric(o.Discount),
		"shipping_cost":         postgres.Numeric(o.ShippingCost),
		"tax":                   postgres.Numeric(o.Tax),
		"total":                 postgres.Numeric(o.Total),
		"status":                string(o.Status),
		"notes":                 o.Notes,
		"internal_notes":        o.InternalNotes,
		"preference_id":         o.PreferenceID,
		"external_reference":    o.ExternalReference,
		"init_point":            o.InitPoint,
		"sandbox_init_point":    o.SandboxInitPoint,
		"source":                string(o.Source),
		"metadata":              metadata,
		"ip_address":            o.IPAddress,
		"user_agent":            o.UserAgent,
		"updated_at":            o.UpdatedAt,
		"delivered_at":          postgres.Timestamptz(o.DeliveredAt),
		"cancelled_at":          postgres.Timestamptz(o.CancelledAt),
		"expires_at":            postgres.Timestamptz(o.ExpiresAt),
	}
}

// PostgresOrderRepository represents a Postgres order repository.
type PostgresOrderRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn postgres.GenericConn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert persists a new order. Totals are recomputed and the version starts at 1.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o *order.Order) error {
	o.CalculateTotals()
	o.Version = 1

	values := mutableValues(o)
	values["id"] = o.ID
	values["order_number"] = o.OrderNumber
	values["version"] = o.Version
	values["created_at"] = o.CreatedAt

	sql, args, err := r.sb.Insert("orders").SetMap(values).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

// GetByID returns the order with its items.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

// GetByNumber returns the order with its items.
func (r *PostgresOrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.getOne(ctx, sq.Eq{"order_number": number})
}

func (r *PostgresOrderRepository) getOne(ctx context.Context, where sq.Eq) (*order.Order, error) {
	sql, args, err := r.sb.Select(orderColumns...).From("orders").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var dal OrderDal
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(dal.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}

		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	model, err := dal.ToModel()
	if err != nil {
		return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
	}

	items, err := orderitemrepo.NewPostgresOrderItemRepository(r.conn).Query(
		ctx,
		&orderitem.QueryOrderItemsModel{OrderIds: []string{model.ID}},
	)
	if err != nil {
		return nil, err
	}
	model.Items = items

	return model, nil
}

func applyFilter(query sq.SelectBuilder, filter *order.QueryOrdersModel) sq.SelectBuilder {
	if filter == nil {
		return query
	}
	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}
	if filter.Status != "" {
		query = query.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Email != "" {
		query = query.Where(sq.Eq{"customer_email": strings.ToLower(filter.Email)})
	}

	return query
}

// Query retrieves orders based on filter criteria, newest first. Items are not loaded.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	query := applyFilter(r.sb.Select(orderColumns...).From("orders"), filter).
		OrderBy("created_at DESC")

	if filter != nil && filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter != nil && filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	result := make([]order.Order, 0)
	for rows.Next() {
		var dal OrderDal
		if err := rows.Scan(dal.scanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// Count returns the number of orders matching filter, ignoring limit and offset.
func (r *PostgresOrderRepository) Count(ctx context.Context, filter *order.QueryOrdersModel) (int64, error) {
	sql, args, err := applyFilter(r.sb.Select("COUNT(*)").From("orders"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int64
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}

	return count, nil
}

// Update writes the order when the stored version matches o.Version.
// o must carry its items, since totals are recomputed from them.
func (r *PostgresOrderRepository) Update(ctx context.Context, o *order.Order) error {
	o.CalculateTotals()

	sql, args, err := r.sb.Update("orders").
		SetMap(mutableValues(o)).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{"id": o.ID, "version": o.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s version %d", order.ErrVersionConflict, o.ID, o.Version)
	}
	o.Version++

	return nil
}

// DeleteExpired removes unpaid orders past their expiry. Items and markers cascade.
func (r *PostgresOrderRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	sql, args, err := r.sb.Delete("orders").
		Where(sq.Lt{"expires_at": now}).
		Where(sq.Eq{"payment_status": string(order.PaymentPending)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired orders: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Stats aggregates order counts and sales.
func (r *PostgresOrderRepository) Stats(ctx context.Context) (*order.Stats, error) {
	sql, args, err := r.sb.Select(
		"COUNT(*)",
		"COUNT(*) FILTER (WHERE status = 'pending')",
		"COUNT(*) FILTER (WHERE status = 'paid')",
		"COUNT(*) FILTER (WHERE status IN ('shipped', 'delivered'))",
		"COALESCE(SUM(total) FILTER (WHERE status IN ('paid', 'shipped', 'delivered')), 0)",
	).From("orders").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build stats query: %w", err)
	}

	stats := &order.Stats{PaymentMethods: []order.MethodStats{}}
	var totalSales pgtype.Numeric
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(
		&stats.TotalOrders,
		&stats.PendingOrders,
		&stats.PaidOrders,
		&stats.CompletedOrders,
		&totalSales,
	); err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	stats.TotalSales = postgres.Decimal(totalSales)

	sql, args, err = r.sb.Select("payment_method", "COUNT(*)", "COALESCE(SUM(total), 0)").
		From("orders").
		GroupBy("payment_method").
		OrderBy("COUNT(*) DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build payment method stats query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment method stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			method string
			ms     order.MethodStats
			total  pgtype.Numeric
		)
		if err := rows.Scan(&method, &ms.Count, &total); err != nil {
			return nil, fmt.Errorf("failed to scan payment method stats: %w", err)
		}
		ms.Method = order.PaymentMethod(method)
		ms.Total = postgres.Decimal(total)
		stats.PaymentMethods = append(stats.PaymentMethods, ms)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return stats, nil
}
