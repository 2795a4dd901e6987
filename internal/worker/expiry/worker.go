package expiry

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

type sweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Worker periodically removes unpaid orders past their expiry time.
type Worker struct {
	sweeper  sweeper
	interval time.Duration
	stopCh   chan struct{}
}

// NewWorker creates a new expiry worker.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func NewWorker(s sweeper) *Worker {
	intervalSeconds := viper.GetInt("orders.expiry.sweep_interval_seconds")
	if intervalSeconds == 0 {
		intervalSeconds = 300
	}

	return &Worker{
		sweeper:  s,
		interval: time.Duration(intervalSeconds) * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start sweeps once immediately and then every interval.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("Expiry worker started", "interval", w.interval)
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Expiry worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Expiry worker stopped")

			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) sweep(ctx context.Context) {
	deleted, err := w.sweeper.DeleteExpired(ctx)
	if err != nil {
		slog.Error("Failed to delete expired orders", "error", err)

		return
	}
	if deleted > 0 {
		slog.Info("Expired orders deleted", "count", deleted)
	}
}
