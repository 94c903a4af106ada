package provider

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
)

// DurationGenerator decides how long a simulated ad plays.
type DurationGenerator interface {
	Next() time.Duration
}

// FixedDuration always returns the same duration.
type FixedDuration time.Duration

func (d FixedDuration) Next() time.Duration { return time.Duration(d) }

// RandomDuration draws uniformly from [Min, Max] at millisecond granularity
// using crypto/rand.
type RandomDuration struct {
	Min time.Duration
	Max time.Duration
}

// NewRandomDuration validates the range. A zero minimum is refused: an
// instant simulated view would be indistinguishable from a skipped one.
func NewRandomDuration(min, max time.Duration) (RandomDuration, error) {
	if min <= 0 {
		return RandomDuration{}, fmt.Errorf("simulation minimum must be positive, got %s", min)
	}
	if min > max {
		return RandomDuration{}, fmt.Errorf("simulation min (%s) > max (%s)", min, max)
	}
	return RandomDuration{Min: min, Max: max}, nil
}

func (r RandomDuration) Next() time.Duration {
	span := (r.Max - r.Min).Milliseconds()
	if span <= 0 {
		return r.Min
	}
	n, err := rand.Int(rand.Reader, big.NewInt(span+1))
	if err != nil {
		return r.Max
	}
	return r.Min + time.Duration(n.Int64())*time.Millisecond
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Simulation is the floor of the provider chain: it always reports a
// completed view after a plausible delay. Only cancellation makes it fail.
type Simulation struct {
	durations DurationGenerator
	wait      WaitFunc
}

// NewSimulation creates the simulated provider.
func NewSimulation(durations DurationGenerator) *Simulation {
	return &Simulation{durations: durations, wait: sleepContext}
}

// WithWait replaces the blocking wait. Used by tests with a fake clock.
func (s *Simulation) WithWait(wait WaitFunc) *Simulation {
	s.wait = wait
	return s
}

func (s *Simulation) ID() domain.ProviderID { return domain.ProviderSimulation }

func (s *Simulation) Initialize(_ context.Context, _ bool) error { return nil }

func (s *Simulation) Attempt(ctx context.Context, _ AttemptRequest) (domain.ProviderAttemptResult, error) {
	d := s.durations.Next()
	if err := s.wait(ctx, d); err != nil {
		return domain.ProviderAttemptResult{}, fmt.Errorf("simulated playback: %w", err)
	}
	return domain.ProviderAttemptResult{
		ProviderID:  domain.ProviderSimulation,
		Success:     true,
		WatchTimeMs: d.Milliseconds(),
	}, nil
}

func (s *Simulation) Teardown(_ context.Context) error { return nil }
