package policy

import (
	"time"

	"github.com/attaboy/adrewards/internal/domain"
)

// Fraud rejection reasons.
const (
	FraudWatchTooShort = "watch_time_too_short"
	FraudHourlyLimit   = "hourly_session_limit"
	FraudDailyRewards  = "daily_reward_limit"
)

// FraudConfig holds the global anti-abuse thresholds.
type FraudConfig struct {
	MinWatchTime       time.Duration `json:"min_watch_time"`
	MaxSessionsPerHour int           `json:"max_sessions_per_hour"`
	MaxRewardsPerDay   int           `json:"max_rewards_per_day"`
}

// DefaultFraudConfig returns the default thresholds (15s, 10/h, 50/day).
func DefaultFraudConfig() FraudConfig {
	return FraudConfig{
		MinWatchTime:       15 * time.Second,
		MaxSessionsPerHour: 10,
		MaxRewardsPerDay:   50,
	}
}

// FraudStats are the user's rate counters at inspection time.
// CompletedLastHour includes the session under inspection;
// RewardedLastDay does not, since it has not been rewarded yet.
type FraudStats struct {
	CompletedLastHour int `json:"completed_last_hour"`
	RewardedLastDay   int `json:"rewarded_last_day"`
}

// FraudVerdict is the outcome of a fraud inspection.
type FraudVerdict struct {
	Accepted bool     `json:"accepted"`
	Reason   string   `json:"reason,omitempty"`
	Flags    []string `json:"flags,omitempty"`
}

// InspectSession evaluates a completed session against timing and rate thresholds.
// The first violated rule becomes the reason; Flags lists all of them.
func InspectSession(session *domain.AdSession, stats FraudStats, cfg FraudConfig) FraudVerdict {
	var flags []string

	if session.WatchTime() < cfg.MinWatchTime {
		flags = append(flags, FraudWatchTooShort)
	}

	if cfg.MaxSessionsPerHour > 0 && stats.CompletedLastHour > cfg.MaxSessionsPerHour {
		flags = append(flags, FraudHourlyLimit)
	}

	if cfg.MaxRewardsPerDay > 0 && stats.RewardedLastDay+1 > cfg.MaxRewardsPerDay {
		flags = append(flags, FraudDailyRewards)
	}

	if len(flags) == 0 {
		return FraudVerdict{Accepted: true}
	}
	return FraudVerdict{Accepted: false, Reason: flags[0], Flags: flags}
}
