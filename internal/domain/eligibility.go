package domain

import "time"

// Eligibility reason codes.
const (
	ReasonEligible      = "eligible"
	ReasonPremiumBypass = "premium_bypass"
	ReasonDailyCap      = "daily_cap_reached"
	ReasonCooldown      = "cooldown_active"
	ReasonSessionActive = "session_active"
)

// EligibilitySnapshot is recomputed on every check and never persisted.
type EligibilitySnapshot struct {
	Eligible            bool       `json:"eligible"`
	Reason              string     `json:"reason"`
	IsPremium           bool       `json:"is_premium"`
	CanWatchAd          bool       `json:"can_watch_ad"`
	NextAvailableAt     *time.Time `json:"next_available_at,omitempty"`
	DailyRewardsGranted int        `json:"daily_rewards_granted"`
}
