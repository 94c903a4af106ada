package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
)

// ExpireFunc is called with each session the reaper aborted.
type ExpireFunc func(ctx context.Context, s domain.AdSession)

// Reaper periodically frees slots held by sessions whose caller went away
// without completing or aborting them.
type Reaper struct {
	tracker  *Tracker
	ttl      time.Duration
	interval time.Duration
	onExpire ExpireFunc
	logger   *slog.Logger
}

// NewReaper creates a reaper that aborts sessions active for longer than ttl.
func NewReaper(tracker *Tracker, ttl, interval time.Duration, onExpire ExpireFunc, logger *slog.Logger) *Reaper {
	return &Reaper{
		tracker:  tracker,
		ttl:      ttl,
		interval: interval,
		onExpire: onExpire,
		logger:   logger,
	}
}

// Start begins sweeping in a goroutine. Stops when ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	r.logger.Info("session reaper started", "ttl", r.ttl, "interval", r.interval)

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("session reaper stopped")
				return
			case <-ticker.C:
				r.Sweep(ctx)
			}
		}
	}()
}

// Sweep runs one pass and returns how many sessions were aborted.
func (r *Reaper) Sweep(ctx context.Context) int {
	expired := r.tracker.Expire(r.tracker.Now().Add(-r.ttl))
	for _, s := range expired {
		if r.onExpire != nil {
			r.onExpire(ctx, s)
		}
	}
	if len(expired) > 0 {
		r.logger.Info("session reaper sweep", "expired", len(expired))
	}
	return len(expired)
}
