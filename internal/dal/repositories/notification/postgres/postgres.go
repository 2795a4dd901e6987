package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/service/models/notification"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// NotificationRepository stores invoice notification markers.
type NotificationRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(conn postgres.GenericConn) *NotificationRepository {
	return &NotificationRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Reserve inserts the marker unless it already exists.
func (r *NotificationRepository) Reserve(ctx context.Context, orderID, paymentID string, now time.Time) (bool, error) {
	sql, args, err := r.sb.Insert("invoice_notifications").
		Columns("order_id", "payment_id", "created_at").
		Values(orderID, paymentID, now).
		Suffix("ON CONFLICT (order_id, payment_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build reserve query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("failed to reserve invoice notification: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Get returns the marker, or nil when missing.
func (r *NotificationRepository) Get(
	ctx context.Context,
	orderID, paymentID string,
) (*notification.InvoiceNotification, error) {
	sql, args, err := r.sb.Select("order_id", "payment_id", "created_at", "sent_at").
		From("invoice_notifications").
		Where(sq.Eq{"order_id": orderID, "payment_id": paymentID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var (
		n      notification.InvoiceNotification
		sentAt pgtype.Timestamptz
	)
	err = r.conn.QueryRow(ctx, sql, args...).Scan(&n.OrderID, &n.PaymentID, &n.CreatedAt, &sentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice notification: %w", err)
	}
	n.SentAt = postgres.TimePtr(sentAt)

	return &n, nil
}

// MarkSent stamps the marker as delivered.
func (r *NotificationRepository) MarkSent(ctx context.Context, orderID, paymentID string, now time.Time) error {
	sql, args, err := r.sb.Update("invoice_notifications").
		Set("sent_at", now).
		Where(sq.Eq{"order_id": orderID, "payment_id": paymentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to mark invoice notification sent: %w", err)
	}

	return nil
}
