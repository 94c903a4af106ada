package policy

import (
	"testing"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/stretchr/testify/assert"
)

func watchedFor(d time.Duration) *domain.AdSession {
	start := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	end := start.Add(d)
	return &domain.AdSession{
		UserID:      "u1",
		Placement:   domain.PlacementBoxOpening,
		State:       domain.SessionCompleted,
		StartedAt:   &start,
		CompletedAt: &end,
	}
}

func TestInspectSession_AcceptsNormalView(t *testing.T) {
	v := InspectSession(watchedFor(22*time.Second), FraudStats{CompletedLastHour: 1}, DefaultFraudConfig())
	assert.True(t, v.Accepted)
	assert.Empty(t, v.Reason)
	assert.Empty(t, v.Flags)
}

func TestInspectSession_WatchTimeBoundary(t *testing.T) {
	cfg := DefaultFraudConfig()

	below := InspectSession(watchedFor(cfg.MinWatchTime-time.Millisecond), FraudStats{CompletedLastHour: 1}, cfg)
	assert.False(t, below.Accepted)
	assert.Equal(t, FraudWatchTooShort, below.Reason)

	exact := InspectSession(watchedFor(cfg.MinWatchTime), FraudStats{CompletedLastHour: 1}, cfg)
	assert.True(t, exact.Accepted)
}

func TestInspectSession_NeverStartedIsTooShort(t *testing.T) {
	s := &domain.AdSession{State: domain.SessionCompleted}
	v := InspectSession(s, FraudStats{}, DefaultFraudConfig())
	assert.False(t, v.Accepted)
	assert.Equal(t, FraudWatchTooShort, v.Reason)
}

func TestInspectSession_HourlyLimit(t *testing.T) {
	cfg := DefaultFraudConfig()

	atLimit := InspectSession(watchedFor(20*time.Second), FraudStats{CompletedLastHour: cfg.MaxSessionsPerHour}, cfg)
	assert.True(t, atLimit.Accepted)

	over := InspectSession(watchedFor(20*time.Second), FraudStats{CompletedLastHour: cfg.MaxSessionsPerHour + 1}, cfg)
	assert.False(t, over.Accepted)
	assert.Equal(t, FraudHourlyLimit, over.Reason)
}

func TestInspectSession_DailyRewardLimit(t *testing.T) {
	cfg := DefaultFraudConfig()

	last := InspectSession(watchedFor(20*time.Second), FraudStats{RewardedLastDay: cfg.MaxRewardsPerDay - 1}, cfg)
	assert.True(t, last.Accepted)

	over := InspectSession(watchedFor(20*time.Second), FraudStats{RewardedLastDay: cfg.MaxRewardsPerDay}, cfg)
	assert.False(t, over.Accepted)
	assert.Equal(t, FraudDailyRewards, over.Reason)
}

func TestInspectSession_CollectsAllFlags(t *testing.T) {
	cfg := DefaultFraudConfig()
	v := InspectSession(watchedFor(time.Second), FraudStats{CompletedLastHour: 99, RewardedLastDay: 99}, cfg)
	assert.False(t, v.Accepted)
	assert.Equal(t, FraudWatchTooShort, v.Reason)
	assert.Equal(t, []string{FraudWatchTooShort, FraudHourlyLimit, FraudDailyRewards}, v.Flags)
}

func TestInspectSession_ZeroLimitsDisableRateChecks(t *testing.T) {
	cfg := FraudConfig{MinWatchTime: 15 * time.Second}
	v := InspectSession(watchedFor(16*time.Second), FraudStats{CompletedLastHour: 1000, RewardedLastDay: 1000}, cfg)
	assert.True(t, v.Accepted)
}
