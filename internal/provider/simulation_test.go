package provider

import (
	"context"
	"testing"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomDuration_InRange(t *testing.T) {
	gen, err := NewRandomDuration(15*time.Second, 30*time.Second)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		d := gen.Next()
		assert.GreaterOrEqual(t, d, 15*time.Second)
		assert.LessOrEqual(t, d, 30*time.Second)
	}
}

func TestRandomDuration_MinEqualsMax(t *testing.T) {
	gen, err := NewRandomDuration(20*time.Second, 20*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, gen.Next())
}

func TestNewRandomDuration_InvalidRange(t *testing.T) {
	_, err := NewRandomDuration(0, time.Second)
	assert.Error(t, err)

	_, err = NewRandomDuration(30*time.Second, 15*time.Second)
	assert.Error(t, err)
}

func TestSimulation_ReportsCompletedView(t *testing.T) {
	var waited time.Duration
	sim := NewSimulation(FixedDuration(18 * time.Second)).WithWait(func(_ context.Context, d time.Duration) error {
		waited = d
		return nil
	})

	require.NoError(t, sim.Initialize(context.Background(), true))
	res, err := sim.Attempt(context.Background(), AttemptRequest{Placement: domain.PlacementBoxOpening})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, int64(18000), res.WatchTimeMs)
	assert.Equal(t, domain.ProviderSimulation, res.ProviderID)
	assert.Equal(t, 18*time.Second, waited)
}

func TestSimulation_Cancelled(t *testing.T) {
	sim := NewSimulation(FixedDuration(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Attempt(ctx, AttemptRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}
