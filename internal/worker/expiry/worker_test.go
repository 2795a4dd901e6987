package expiry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) DeleteExpired(context.Context) (int64, error) {
	s.calls.Add(1)

	return 2, s.err
}

func TestStartSweepsImmediatelyAndStops(t *testing.T) {
	s := &countingSweeper{}
	w := NewWorker(s)
	w.interval = time.Hour

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for s.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("no sweep before deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}

	w.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestSweepToleratesErrors(t *testing.T) {
	s := &countingSweeper{err: errors.New("db down")}
	w := NewWorker(s)

	w.sweep(context.Background())
	w.sweep(context.Background())

	if got := s.calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}
