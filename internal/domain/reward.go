package domain

import "github.com/shopspring/decimal"

// RewardKind is the currency a reward is paid in.
type RewardKind string

const (
	RewardMoney        RewardKind = "money"
	RewardCoins        RewardKind = "coins"
	RewardEnergy       RewardKind = "energy"
	RewardTradingBonus RewardKind = "trading_bonus"
)

// Reward describes what a successful ad view pays out. It is a value type;
// downstream consumers (tasks, wheel, trading) apply it.
type Reward struct {
	Kind            RewardKind       `json:"kind"`
	Amount          int64            `json:"amount"`
	BonusPercentage *decimal.Decimal `json:"bonus_percentage,omitempty"`
}

// NewReward builds a reward without a bonus percentage.
func NewReward(kind RewardKind, amount int64) Reward {
	return Reward{Kind: kind, Amount: amount}
}

// NewTradingBonus builds a trading_bonus reward carrying a percentage boost.
func NewTradingBonus(amount int64, pct decimal.Decimal) Reward {
	return Reward{Kind: RewardTradingBonus, Amount: amount, BonusPercentage: &pct}
}
