package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres persistence collaborator of the ad engine. Each write
// commits its row and outbox event in one transaction.
type Store struct {
	pool     *pgxpool.Pool
	sessions AdSessionRepository
	rewards  RewardRepository
	premium  PremiumRepository
	outbox   OutboxRepository
}

// NewStore creates a Store over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:     pool,
		sessions: NewAdSessionRepository(),
		rewards:  NewRewardRepository(),
		premium:  NewPremiumRepository(),
		outbox:   NewOutboxRepository(),
	}
}

func (s *Store) RecentSessions(ctx context.Context, userID string, placement domain.Placement, since time.Time) ([]domain.AdSession, error) {
	return s.sessions.ListRecent(ctx, s.pool, userID, placement, since)
}

func (s *Store) PersistSession(ctx context.Context, session domain.AdSession) error {
	if !session.State.Terminal() {
		return fmt.Errorf("session %s is %s, only terminal sessions are stored", session.ID, session.State)
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		inserted, err := s.sessions.Insert(ctx, tx, session)
		if err != nil || !inserted {
			return err
		}
		return s.outbox.Insert(ctx, tx, domain.NewSessionFinishedEvent(&session))
	})
}

func (s *Store) PersistReward(ctx context.Context, userID string, session domain.AdSession) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		inserted, err := s.rewards.Insert(ctx, tx, userID, session)
		if err != nil || !inserted {
			return err
		}
		return s.outbox.Insert(ctx, tx, domain.NewRewardGrantedEvent(userID, session.ID, session.Placement, *session.Reward))
	})
}

// IsPremium reports whether the user holds an active premium membership.
func (s *Store) IsPremium(ctx context.Context, userID string) (bool, error) {
	return s.premium.IsActive(ctx, s.pool, userID, time.Now())
}
