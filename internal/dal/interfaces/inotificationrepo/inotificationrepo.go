package inotificationrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/notification"
)

// INotificationRepository stores invoice notification markers.
type INotificationRepository interface {
	// Reserve inserts the marker for (orderID, paymentID). It reports false when
	// the marker already existed.
	Reserve(ctx context.Context, orderID, paymentID string, now time.Time) (bool, error)

	// Get returns nil, nil when no marker exists.
	Get(ctx context.Context, orderID, paymentID string) (*notification.InvoiceNotification, error)
	MarkSent(ctx context.Context, orderID, paymentID string, now time.Time) error
}
