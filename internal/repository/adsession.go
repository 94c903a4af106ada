package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type adSessionRepo struct{}

// NewAdSessionRepository returns a pgx-backed AdSessionRepository.
func NewAdSessionRepository() AdSessionRepository {
	return &adSessionRepo{}
}

func (r *adSessionRepo) Insert(ctx context.Context, db DBTX, s domain.AdSession) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO ad_sessions
		  (id, user_id, placement, provider, state, reason, created_at, started_at, completed_at, watch_time_ms)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		s.ID,
		s.UserID,
		string(s.Placement),
		string(s.Provider),
		string(s.State),
		s.Reason,
		s.CreatedAt,
		s.StartedAt,
		s.CompletedAt,
		s.WatchTimeMs(),
	)
	if err != nil {
		return false, fmt.Errorf("insert ad session: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *adSessionRepo) ListRecent(ctx context.Context, db DBTX, userID string, placement domain.Placement, since time.Time) ([]domain.AdSession, error) {
	rows, err := db.Query(ctx, `
		SELECT s.id, s.user_id, s.placement, COALESCE(s.provider, ''), s.state, COALESCE(s.reason, ''),
		       s.created_at, s.started_at, s.completed_at,
		       r.kind, r.amount, r.bonus_percentage
		FROM ad_sessions s
		LEFT JOIN ad_rewards r ON r.session_id = s.id
		WHERE s.user_id = $1
		  AND ($2 = '' OR s.placement = $2)
		  AND s.completed_at > $3
		ORDER BY s.completed_at DESC`, userID, string(placement), since)
	if err != nil {
		return nil, fmt.Errorf("list recent ad sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.AdSession
	for rows.Next() {
		s, err := scanAdSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanAdSession(row pgx.Row) (domain.AdSession, error) {
	var (
		s         domain.AdSession
		placement string
		prov      string
		state     string
		kind      *string
		amount    pgtype.Numeric
		bonus     decimal.NullDecimal
	)
	err := row.Scan(&s.ID, &s.UserID, &placement, &prov, &state, &s.Reason,
		&s.CreatedAt, &s.StartedAt, &s.CompletedAt,
		&kind, &amount, &bonus)
	if err != nil {
		return domain.AdSession{}, fmt.Errorf("scan ad session: %w", err)
	}
	s.Placement = domain.Placement(placement)
	s.Provider = domain.ProviderID(prov)
	s.State = domain.SessionState(state)

	if kind != nil {
		v, err := amountFromNumeric(amount)
		if err != nil {
			return domain.AdSession{}, fmt.Errorf("reward amount: %w", err)
		}
		reward := domain.NewReward(domain.RewardKind(*kind), v)
		if bonus.Valid {
			pct := bonus.Decimal
			reward.BonusPercentage = &pct
		}
		s.Reward = &reward
	}
	return s, nil
}
