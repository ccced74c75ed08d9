package reconcile

import (
	"context"
	"errors"
	"time"
)

// Scheduler runs a sync function on a fixed interval. It is the background
// trigger; the single-flight guarantee lives in the Service, so a tick that
// collides with a manual sync is simply skipped.
type Scheduler struct {
	interval time.Duration
	sync     func(ctx context.Context) error
	onError  func(err error)
}

func NewScheduler(interval time.Duration, sync func(ctx context.Context) error, onError func(err error)) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{interval: interval, sync: sync, onError: onError}
}

// Run blocks until the context is cancelled, triggering a sync every
// interval. The first sync runs after one full interval, not immediately.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sync(ctx); err != nil {
				if errors.Is(err, ErrSyncInFlight) || errors.Is(err, context.Canceled) {
					continue
				}
				if s.onError != nil {
					s.onError(err)
				}
			}
		}
	}
}
