package repository

import (
	"context"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// AdSessionRepository provides access to ad_sessions.
type AdSessionRepository interface {
	// Insert writes a terminal session. It reports false when the row already
	// existed, so retries do not emit duplicate events.
	Insert(ctx context.Context, db DBTX, s domain.AdSession) (bool, error)

	// ListRecent returns the user's sessions completed after since, joined with
	// their rewards. An empty placement matches all placements.
	ListRecent(ctx context.Context, db DBTX, userID string, placement domain.Placement, since time.Time) ([]domain.AdSession, error)
}

// RewardRepository provides access to ad_rewards.
type RewardRepository interface {
	// Insert records the reward for a session; false if one was already recorded.
	Insert(ctx context.Context, db DBTX, userID string, s domain.AdSession) (bool, error)
}

// PremiumRepository provides access to premium_memberships.
type PremiumRepository interface {
	// IsActive reports whether the user has an unexpired membership at now.
	IsActive(ctx context.Context, db DBTX, userID string, now time.Time) (bool, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the session row).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events with their sequence IDs.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxRecord, error)

	// MarkPublished stamps events as published.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}
