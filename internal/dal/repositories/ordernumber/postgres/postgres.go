package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderNumberRepository allocates per-day order sequences.
type OrderNumberRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewOrderNumberRepository creates a new order number repository.
func NewOrderNumberRepository(conn postgres.GenericConn) *OrderNumberRepository {
	return &OrderNumberRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Next increments the counter of day in a single upsert, so concurrent callers never
// observe the same value.
func (r *OrderNumberRepository) Next(ctx context.Context, day time.Time) (int64, error) {
	sql, args, err := r.sb.Insert("order_number_sequences").
		Columns("day", "last_value").
		Values(pgtype.Date{Time: time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC), Valid: true}, 1).
		Suffix("ON CONFLICT (day) DO UPDATE SET last_value = order_number_sequences.last_value + 1 RETURNING last_value").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build sequence query: %w", err)
	}

	var seq int64
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to allocate order number: %w", err)
	}

	return seq, nil
}
