package repository

import (
	"context"
	"fmt"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/shopspring/decimal"
)

type rewardRepo struct{}

// NewRewardRepository returns a pgx-backed RewardRepository.
func NewRewardRepository() RewardRepository {
	return &rewardRepo{}
}

func (r *rewardRepo) Insert(ctx context.Context, db DBTX, userID string, s domain.AdSession) (bool, error) {
	if s.Reward == nil {
		return false, fmt.Errorf("session %s has no reward", s.ID)
	}

	var bonus decimal.NullDecimal
	if s.Reward.BonusPercentage != nil {
		bonus = decimal.NewNullDecimal(*s.Reward.BonusPercentage)
	}

	tag, err := db.Exec(ctx, `
		INSERT INTO ad_rewards (session_id, user_id, placement, kind, amount, bonus_percentage, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO NOTHING`,
		s.ID,
		userID,
		string(s.Placement),
		string(s.Reward.Kind),
		numericFromAmount(s.Reward.Amount),
		bonus,
		s.CompletedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert ad reward: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
