package repository

import (
	"context"
	"fmt"
	"time"
)

type premiumRepo struct{}

// NewPremiumRepository returns a pgx-backed PremiumRepository.
func NewPremiumRepository() PremiumRepository {
	return &premiumRepo{}
}

func (r *premiumRepo) IsActive(ctx context.Context, db DBTX, userID string, now time.Time) (bool, error) {
	var active bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
		  SELECT 1 FROM premium_memberships
		  WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > $2)
		)`, userID, now).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("query premium membership: %w", err)
	}
	return active, nil
}
