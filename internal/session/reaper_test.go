package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaper_SweepExpiresStaleSessions(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stale, err := tr.Create("stale", domain.PlacementTaskCompletion)
	require.NoError(t, err)
	_, _ = tr.Begin(stale.ID)

	clock.Advance(4 * time.Minute)
	_, err = tr.Create("fresh", domain.PlacementTaskCompletion)
	require.NoError(t, err)

	var expired []domain.AdSession
	r := NewReaper(tr, 3*time.Minute, time.Minute, func(_ context.Context, s domain.AdSession) {
		expired = append(expired, s)
	}, logger)

	assert.Equal(t, 1, r.Sweep(context.Background()))
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
	assert.Equal(t, domain.SessionAborted, expired[0].State)
	assert.Equal(t, domain.AbortExpired, expired[0].Reason)

	_, ok := tr.Active("stale")
	assert.False(t, ok)
	_, ok = tr.Active("fresh")
	assert.True(t, ok)

	_, err = tr.Create("stale", domain.PlacementTaskCompletion)
	assert.NoError(t, err, "slot is free again")
}

func TestReaper_PrunesHistoryPastRetention(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, _ := tr.Create("user-1", domain.PlacementTaskCompletion)
	_, _ = tr.Abort(s.ID, domain.AbortCancelled)
	require.Len(t, tr.Recent("user-1", clock.Now().Add(-time.Hour)), 1)

	clock.Advance(25 * time.Hour)
	NewReaper(tr, time.Minute, time.Minute, nil, logger).Sweep(context.Background())

	assert.Empty(t, tr.Recent("user-1", time.Time{}))
	_, ok := tr.Get(s.ID)
	assert.False(t, ok)
}

func TestReaper_StartStopsOnCancel(t *testing.T) {
	clock := newFakeClock()
	tr := newTestTracker(clock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, _ = tr.Create("user-1", domain.PlacementTaskCompletion)
	clock.Advance(10 * time.Minute)

	done := make(chan struct{}, 1)
	r := NewReaper(tr, time.Minute, 5*time.Millisecond, func(context.Context, domain.AdSession) {
		select {
		case done <- struct{}{}:
		default:
		}
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not sweep")
	}
	assert.Zero(t, tr.ActiveCount())
}
