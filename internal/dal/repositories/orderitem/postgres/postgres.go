package postgresrepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var itemColumns = []string{
	"id",
	"order_id",
	"name",
	"description",
	"image",
	"size",
	"color",
	"price",
	"quantity",
	"subtotal",
	"created_at",
}

// OrderItemDal represents order item data access layer model.
type OrderItemDal struct {
	ID          int64
	OrderID     string
	Name        string
	Description string
	Image       string
	Size        string
	Color       string
	Price       pgtype.Numeric
	Quantity    int
	Subtotal    pgtype.Numeric
	CreatedAt   time.Time
}

// ToModel converts OrderItemDal to service layer OrderItem model.
func (oi *OrderItemDal) ToModel() orderitem.OrderItem {
	return orderitem.OrderItem{
		ID:          oi.ID,
		OrderID:     oi.OrderID,
		Name:        oi.Name,
		Description: oi.Description,
		Image:       oi.Image,
		Size:        oi.Size,
		Color:       oi.Color,
		Price:       postgres.Decimal(oi.Price),
		Quantity:    oi.Quantity,
		Subtotal:    postgres.Decimal(oi.Subtotal),
		CreatedAt:   oi.CreatedAt,
	}
}

// PostgresOrderItemRepository represents a Postgres order item repository.
type PostgresOrderItemRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderItemRepository creates a new Postgres order item repository.
func NewPostgresOrderItemRepository(conn postgres.GenericConn) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// BulkInsert inserts multiple order items and returns them with IDs.
// Subtotals are recomputed from price and quantity.
func (r *PostgresOrderItemRepository) BulkInsert(
	ctx context.Context,
	orderItems []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	if len(orderItems) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	query := r.sb.Insert("order_items").
		Columns(itemColumns[1:]...).
		Suffix("RETURNING " + strings.Join(itemColumns, ", "))

	for _, oi := range orderItems {
		query = query.Values(
			oi.OrderID,
			oi.Name,
			oi.Description,
			oi.Image,
			oi.Size,
			oi.Color,
			postgres.Numeric(oi.Price),
			oi.Quantity,
			postgres.Numeric(oi.LineTotal()),
			oi.CreatedAt,
		)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert order items: %w", err)
	}

	return collect(rows)
}

// Query retrieves order items based on filter criteria, in insertion order.
func (r *PostgresOrderItemRepository) Query(
	ctx context.Context,
	filter *orderitem.QueryOrderItemsModel,
) ([]orderitem.OrderItem, error) {
	query := r.sb.Select(itemColumns...).From("order_items").OrderBy("id ASC")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.OrderIds) > 0 {
		query = query.Where(sq.Eq{"order_id": filter.OrderIds})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}

	return collect(rows)
}

func collect(rows pgx.Rows) ([]orderitem.OrderItem, error) {
	defer rows.Close()

	result := make([]orderitem.OrderItem, 0)
	for rows.Next() {
		var dal OrderItemDal
		err := rows.Scan(
			&dal.ID,
			&dal.OrderID,
			&dal.Name,
			&dal.Description,
			&dal.Image,
			&dal.Size,
			&dal.Color,
			&dal.Price,
			&dal.Quantity,
			&dal.Subtotal,
			&dal.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		result = append(result, dal.ToModel())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
