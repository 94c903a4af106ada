package policy

import (
	"github.com/attaboy/adrewards/internal/domain"
	"github.com/shopspring/decimal"
)

// RewardConfig holds the per-placement payout defaults.
type RewardConfig struct {
	Defaults            map[domain.Placement]int64 `json:"defaults"`
	WheelSpinCost       int64                      `json:"wheel_spin_cost"`
	TradingBonusPercent decimal.Decimal            `json:"trading_bonus_percent"`
}

// DefaultRewardConfig returns the default payouts.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		Defaults: map[domain.Placement]int64{
			domain.PlacementTaskCompletion:   5,
			domain.PlacementScreenTransition: 1,
			domain.PlacementBoxOpening:       50,
			domain.PlacementTradingBonus:     100,
		},
		WheelSpinCost:       10,
		TradingBonusPercent: decimal.NewFromInt(5),
	}
}

// ComputeReward maps a placement to its reward descriptor. A non-nil override
// replaces the configured amount for any placement.
//
// A wheel_spin reward is energy sized to one spin, so the ad pays for the spin.
// trading_bonus carries the bonus percentage untouched; the trading service
// decides how it composes with other active bonuses.
func ComputeReward(placement domain.Placement, cfg RewardConfig, override *int64) domain.Reward {
	amount := cfg.Defaults[placement]
	if placement == domain.PlacementWheelSpin {
		amount = cfg.WheelSpinCost
	}
	if override != nil {
		amount = *override
	}

	switch placement {
	case domain.PlacementBoxOpening:
		return domain.NewReward(domain.RewardCoins, amount)
	case domain.PlacementTradingBonus:
		return domain.NewTradingBonus(amount, cfg.TradingBonusPercent)
	default:
		// task_completion, screen_transition, wheel_spin
		return domain.NewReward(domain.RewardEnergy, amount)
	}
}
