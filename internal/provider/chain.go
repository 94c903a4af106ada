package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/attaboy/adrewards/internal/guard"
	"golang.org/x/sync/errgroup"
)

// Attempt outcomes reported to an AttemptObserver.
const (
	OutcomeServed     = "served"
	OutcomeNotWatched = "not_watched"
	OutcomeFailed     = "failed"
	OutcomeTimeout    = "timeout"
	OutcomeSkipped    = "skipped"
)

// AttemptObserver receives one call per provider attempt.
type AttemptObserver interface {
	ObserveAttempt(provider domain.ProviderID, outcome string, elapsed time.Duration)
}

// Entry registers an adapter with its playback timeout. A zero timeout runs
// the adapter without a deadline of its own; use it only for the floor.
type Entry struct {
	Adapter Adapter
	Timeout time.Duration
}

// Chain tries adapters in priority order until one serves the ad.
type Chain struct {
	entries  []Entry
	breaker  *guard.CircuitBreaker
	logger   *slog.Logger
	observer AttemptObserver
	now      func() time.Time

	mu    sync.RWMutex
	ready map[domain.ProviderID]bool
}

// NewChain creates a chain over entries in the given order.
func NewChain(logger *slog.Logger, breaker *guard.CircuitBreaker, entries ...Entry) *Chain {
	return &Chain{
		entries: entries,
		breaker: breaker,
		logger:  logger,
		now:     time.Now,
		ready:   make(map[domain.ProviderID]bool),
	}
}

// WithClock replaces the time source used to stamp attempts. It must match
// the session tracker's clock.
func (c *Chain) WithClock(now func() time.Time) *Chain {
	c.now = now
	return c
}

// WithObserver attaches an observer for per-attempt metrics.
func (c *Chain) WithObserver(o AttemptObserver) *Chain {
	c.observer = o
	return c
}

// Providers returns the configured provider IDs in priority order.
func (c *Chain) Providers() []domain.ProviderID {
	ids := make([]domain.ProviderID, 0, len(c.entries))
	for _, e := range c.entries {
		ids = append(ids, e.Adapter.ID())
	}
	return ids
}

// Initialize initializes every adapter concurrently. An adapter that fails
// stays in the chain but is skipped; the call fails only if none is ready.
func (c *Chain) Initialize(ctx context.Context, testMode bool) error {
	if len(c.entries) == 0 {
		return domain.ErrProviderExhausted()
	}

	var g errgroup.Group
	for _, e := range c.entries {
		a := e.Adapter
		g.Go(func() error {
			err := a.Initialize(ctx, testMode)
			c.mu.Lock()
			c.ready[a.ID()] = err == nil
			c.mu.Unlock()
			if err != nil {
				c.logger.Warn("ad provider unavailable, will be skipped", "provider", a.ID(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ok := range c.ready {
		if ok {
			return nil
		}
	}
	return domain.ErrProviderExhausted()
}

// Teardown tears down all adapters concurrently and returns the first error.
func (c *Chain) Teardown(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range c.entries {
		a := e.Adapter
		g.Go(func() error {
			if err := a.Teardown(gctx); err != nil {
				return fmt.Errorf("teardown %s: %w", a.ID(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Chain) isReady(id domain.ProviderID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready[id]
}

// Attempt plays one ad, falling back through the chain on error or timeout.
// A result with Success=false is returned as-is: the viewer closed the ad, and
// showing another one is the caller's decision. Cancellation of ctx stops the
// chain and is returned to the caller.
func (c *Chain) Attempt(ctx context.Context, req AttemptRequest) (domain.ProviderAttemptResult, error) {
	for _, e := range c.entries {
		id := e.Adapter.ID()
		key := string(id)

		if !c.isReady(id) {
			c.observe(id, OutcomeSkipped, 0)
			continue
		}
		if result := c.breaker.Check(ctx, key); !result.Allowed {
			c.logger.Warn("ad provider skipped", "provider", id, "reason", result.Reason)
			c.observe(id, OutcomeSkipped, 0)
			continue
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if e.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		}
		started := c.now()
		res, err := e.Adapter.Attempt(attemptCtx, req)
		cancel()
		elapsed := c.now().Sub(started)

		if err == nil {
			c.breaker.RecordSuccess(key)
			res.ProviderID = id
			res.StartedAt = started
			outcome := OutcomeServed
			if !res.Success {
				outcome = OutcomeNotWatched
			}
			c.observe(id, outcome, elapsed)
			return res, nil
		}

		if ctx.Err() != nil {
			// The caller left; that says nothing about the provider.
			c.breaker.Release(key)
			c.observe(id, OutcomeFailed, elapsed)
			return domain.ProviderAttemptResult{}, ctx.Err()
		}

		outcome := OutcomeFailed
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = OutcomeTimeout
		}
		c.breaker.RecordFailure(key)
		c.observe(id, outcome, elapsed)
		c.logger.Warn("ad provider failed, falling back",
			"provider", id,
			"session_id", req.SessionID,
			"outcome", outcome,
			"error", err,
		)
	}

	return domain.ProviderAttemptResult{}, domain.ErrProviderExhausted()
}

func (c *Chain) observe(id domain.ProviderID, outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveAttempt(id, outcome, elapsed)
	}
}
