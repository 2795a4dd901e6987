package iordernumberrepo

import (
	"context"
	"time"
)

// IOrderNumberRepository hands out daily order number sequences.
type IOrderNumberRepository interface {
	// Next atomically increments and returns the counter of day, starting at 1.
	Next(ctx context.Context, day time.Time) (int64, error)
}
