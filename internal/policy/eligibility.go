package policy

import (
	"time"

	"github.com/attaboy/adrewards/internal/domain"
)

// EligibilityWindow is the trailing window the daily cap is counted over.
const EligibilityWindow = 24 * time.Hour

// PlacementRule limits how often a placement may pay out.
// Zero values disable the corresponding check.
type PlacementRule struct {
	DailyCap        int `json:"daily_cap"`
	CooldownMinutes int `json:"cooldown_minutes"`
}

// EligibilityConfig holds the per-placement rules.
type EligibilityConfig struct {
	Rules map[domain.Placement]PlacementRule `json:"rules"`
}

// DefaultEligibilityConfig returns the production defaults.
func DefaultEligibilityConfig() EligibilityConfig {
	return EligibilityConfig{
		Rules: map[domain.Placement]PlacementRule{
			domain.PlacementTaskCompletion:   {DailyCap: 10, CooldownMinutes: 5},
			domain.PlacementWheelSpin:        {DailyCap: 5, CooldownMinutes: 30},
			domain.PlacementBoxOpening:       {DailyCap: 5, CooldownMinutes: 30},
			domain.PlacementTradingBonus:     {DailyCap: 3, CooldownMinutes: 60},
			domain.PlacementScreenTransition: {DailyCap: 20, CooldownMinutes: 2},
		},
	}
}

// Rule returns the rule for a placement; unknown placements are unrestricted.
func (c EligibilityConfig) Rule(p domain.Placement) PlacementRule {
	return c.Rules[p]
}

// EvaluateEligibility decides whether userID may watch a rewarded ad for placement.
// recent is the caller-supplied window of prior sessions; sessions of other users
// or placements are ignored. Premium users never see rewarded ads.
func EvaluateEligibility(
	userID string,
	placement domain.Placement,
	isPremium bool,
	recent []domain.AdSession,
	cfg EligibilityConfig,
	now time.Time,
) domain.EligibilitySnapshot {
	if isPremium {
		return domain.EligibilitySnapshot{
			Eligible:  false,
			Reason:    domain.ReasonPremiumBypass,
			IsPremium: true,
		}
	}

	rule := cfg.Rule(placement)
	cutoff := now.Add(-EligibilityWindow)

	var (
		granted     int
		oldest      *time.Time
		lastSuccess *time.Time
	)
	for i := range recent {
		s := &recent[i]
		if s.UserID != userID || s.Placement != placement || !s.Successful() || s.CompletedAt == nil {
			continue
		}
		done := *s.CompletedAt
		if lastSuccess == nil || done.After(*lastSuccess) {
			lastSuccess = &done
		}
		if !done.After(cutoff) {
			continue
		}
		granted++
		if oldest == nil || done.Before(*oldest) {
			oldest = &done
		}
	}

	snap := domain.EligibilitySnapshot{
		Eligible:            true,
		Reason:              domain.ReasonEligible,
		CanWatchAd:          true,
		DailyRewardsGranted: granted,
	}

	if rule.DailyCap > 0 && granted >= rule.DailyCap {
		next := oldest.Add(EligibilityWindow)
		snap.Eligible = false
		snap.Reason = domain.ReasonDailyCap
		snap.NextAvailableAt = &next
		return snap
	}

	if rule.CooldownMinutes > 0 && lastSuccess != nil {
		next := lastSuccess.Add(time.Duration(rule.CooldownMinutes) * time.Minute)
		if now.Before(next) {
			snap.Eligible = false
			snap.Reason = domain.ReasonCooldown
			snap.NextAvailableAt = &next
			return snap
		}
	}

	return snap
}
