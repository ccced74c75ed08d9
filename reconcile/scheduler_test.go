package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerTriggersAndStops(t *testing.T) {
	t.Parallel()

	var runs atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	scheduler := NewScheduler(10*time.Millisecond, func(context.Context) error {
		if runs.Add(1) >= 3 {
			cancel()
		}
		return nil
	}, nil)

	finished := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	if runs.Load() < 3 {
		t.Fatalf("runs = %d, want >= 3", runs.Load())
	}
}

func TestSchedulerSkipsInFlightWithoutReporting(t *testing.T) {
	t.Parallel()

	var reported atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	scheduler := NewScheduler(10*time.Millisecond, func(context.Context) error {
		defer cancel()
		return ErrSyncInFlight
	}, func(error) {
		reported.Add(1)
	})

	finished := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	if reported.Load() != 0 {
		t.Errorf("onError calls = %d, want 0 for in-flight skips", reported.Load())
	}
}

func TestSchedulerReportsFailures(t *testing.T) {
	t.Parallel()

	var reported atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	scheduler := NewScheduler(10*time.Millisecond, func(context.Context) error {
		defer cancel()
		return errors.New("remote unreachable")
	}, func(error) {
		reported.Add(1)
	})

	finished := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	if reported.Load() != 1 {
		t.Errorf("onError calls = %d, want 1", reported.Load())
	}
}
