//go:build integration

package repository

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/attaboy/adrewards/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sharedPool *pgxpool.Pool
	poolOnce   sync.Once
	poolErr    error
)

// testPool connects to ADREWARDS_TEST_DATABASE_URL and migrates it once.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("ADREWARDS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ADREWARDS_TEST_DATABASE_URL not set")
	}

	poolOnce.Do(func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		if poolErr = infra.RunMigrations(dsn, logger); poolErr != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sharedPool, poolErr = pgxpool.New(ctx, dsn)
	})
	require.NoError(t, poolErr)
	return sharedPool
}

func finishedSession(userID string, placement domain.Placement, completedAt time.Time, reward *domain.Reward) domain.AdSession {
	started := completedAt.Add(-20 * time.Second)
	done := completedAt
	return domain.AdSession{
		ID:          uuid.New(),
		UserID:      userID,
		Placement:   placement,
		Provider:    domain.ProviderSimulation,
		State:       domain.SessionCompleted,
		CreatedAt:   started.Add(-time.Second),
		StartedAt:   &started,
		CompletedAt: &done,
		Reward:      reward,
	}
}

func TestStore_PersistAndList(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool)
	ctx := context.Background()
	userID := "it-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	bonus := domain.NewTradingBonus(100, decimal.RequireFromString("5.5"))
	rewarded := finishedSession(userID, domain.PlacementTradingBonus, now.Add(-time.Minute), &bonus)
	require.NoError(t, store.PersistSession(ctx, rewarded))
	require.NoError(t, store.PersistReward(ctx, userID, rewarded))

	aborted := finishedSession(userID, domain.PlacementWheelSpin, now, nil)
	aborted.State = domain.SessionAborted
	aborted.Reason = domain.AbortExpired
	require.NoError(t, store.PersistSession(ctx, aborted))

	t.Run("writes are idempotent", func(t *testing.T) {
		require.NoError(t, store.PersistSession(ctx, rewarded))
		require.NoError(t, store.PersistReward(ctx, userID, rewarded))

		var outboxRows int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT count(*) FROM event_outbox WHERE "partitionKey" = $1`, userID).Scan(&outboxRows))
		assert.Equal(t, 3, outboxRows)
	})

	t.Run("all placements newest first", func(t *testing.T) {
		got, err := store.RecentSessions(ctx, userID, "", now.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, aborted.ID, got[0].ID)
		assert.Equal(t, domain.AbortExpired, got[0].Reason)
		assert.Nil(t, got[0].Reward)

		assert.Equal(t, rewarded.ID, got[1].ID)
		require.NotNil(t, got[1].Reward)
		assert.Equal(t, int64(100), got[1].Reward.Amount)
		require.NotNil(t, got[1].Reward.BonusPercentage)
		assert.True(t, decimal.RequireFromString("5.5").Equal(*got[1].Reward.BonusPercentage))
		assert.Equal(t, int64(20000), got[1].WatchTimeMs())
	})

	t.Run("placement filter and window", func(t *testing.T) {
		got, err := store.RecentSessions(ctx, userID, domain.PlacementWheelSpin, now.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, aborted.ID, got[0].ID)

		got, err = store.RecentSessions(ctx, userID, "", now.Add(-30*time.Second))
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("non-terminal session is refused", func(t *testing.T) {
		live := finishedSession(userID, domain.PlacementWheelSpin, now, nil)
		live.State = domain.SessionStarted
		assert.Error(t, store.PersistSession(ctx, live))
	})
}

func TestStore_IsPremium(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool)
	ctx := context.Background()

	active := "it-premium-" + uuid.NewString()
	lapsed := "it-lapsed-" + uuid.NewString()
	_, err := pool.Exec(ctx, `INSERT INTO premium_memberships (user_id, expires_at) VALUES ($1, NULL), ($2, now() - interval '1 day')`, active, lapsed)
	require.NoError(t, err)

	for userID, want := range map[string]bool{active: true, lapsed: false, "it-nobody": false} {
		got, err := store.IsPremium(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, want, got, userID)
	}
}

func TestOutboxFeed(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool)
	feed := NewOutboxFeed(pool)
	ctx := context.Background()
	userID := "it-outbox-" + uuid.NewString()

	s := finishedSession(userID, domain.PlacementTaskCompletion, time.Now(), nil)
	require.NoError(t, store.PersistSession(ctx, s))

	records, err := feed.FetchUnpublished(ctx, 1000)
	require.NoError(t, err)

	var ids []int64
	for _, rec := range records {
		if rec.PartitionKey == userID {
			assert.Equal(t, domain.EventSessionCompleted, rec.EventType)
			ids = append(ids, rec.ID)
		}
	}
	require.Len(t, ids, 1)
	require.NoError(t, feed.MarkPublished(ctx, ids))

	records, err = feed.FetchUnpublished(ctx, 1000)
	require.NoError(t, err)
	for _, rec := range records {
		assert.NotEqual(t, userID, rec.PartitionKey)
	}
}
