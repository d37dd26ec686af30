package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeExpirer struct {
	calls   atomic.Int32
	batches []int
	err     error
}

func (f *fakeExpirer) SweepExpired(_ context.Context, _ int) (int, error) {
	n := int(f.calls.Add(1))
	if f.err != nil {
		return 0, f.err
	}
	if n <= len(f.batches) {
		return f.batches[n-1], nil
	}
	return 0, nil
}

func TestSweepDrainsFullBatches(t *testing.T) {
	// Two full batches then a partial one: the pass must keep going until
	// the store reports fewer than a full batch.
	exp := &fakeExpirer{batches: []int{10, 10, 3}}
	s := New(exp, WithBatchSize(10))

	s.sweep()

	if got := exp.calls.Load(); got != 3 {
		t.Fatalf("expected 3 sweep calls, got %d", got)
	}
}

func TestSweepStopsOnError(t *testing.T) {
	exp := &fakeExpirer{err: errors.New("store down")}
	s := New(exp, WithBatchSize(10))

	s.sweep()

	if got := exp.calls.Load(); got != 1 {
		t.Fatalf("expected a single call on error, got %d", got)
	}
}

func TestStartStop(t *testing.T) {
	exp := &fakeExpirer{}
	s := New(exp, WithInterval(5*time.Millisecond), WithBatchSize(10))

	s.Start()

	deadline := time.After(2 * time.Second)
	for exp.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("sweeper never ticked")
		case <-time.After(time.Millisecond):
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("unexpected error stopping: %v", err)
	}
}
