package repository

import (
	"context"
	"fmt"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type outboxRepo struct{}

// NewOutboxRepository returns a pgx-backed OutboxRepository.
func NewOutboxRepository() OutboxRepository {
	return &outboxRepo{}
}

// Insert writes an outbox event using the camelCase column names.
func (r *outboxRepo) Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error {
	_, err := db.Exec(ctx, `
		INSERT INTO event_outbox
		  ("eventId", "aggregateType", "aggregateId", "eventType", "partitionKey", "headers", "payload", "occurredAt")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		draft.EventID,
		string(draft.AggregateType),
		draft.AggregateID,
		string(draft.EventType),
		draft.PartitionKey,
		draft.Headers,
		draft.Payload,
		draft.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepo) FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT "id", "eventId", "aggregateType", "aggregateId", "eventType",
		       "partitionKey", "headers", "payload", "occurredAt"
		FROM event_outbox
		WHERE "publishedAt" IS NULL
		ORDER BY "id" ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished events: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxRecord
	for rows.Next() {
		var rec domain.OutboxRecord
		var aggType, evtType string
		err := rows.Scan(&rec.ID, &rec.EventID, &aggType, &rec.AggregateID,
			&evtType, &rec.PartitionKey, &rec.Headers, &rec.Payload, &rec.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		rec.AggregateType = domain.AggregateType(aggType)
		rec.EventType = domain.EventType(evtType)
		events = append(events, rec)
	}
	return events, rows.Err()
}

func (r *outboxRepo) MarkPublished(ctx context.Context, db DBTX, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.Exec(ctx, `UPDATE event_outbox SET "publishedAt" = now() WHERE "id" = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

// OutboxFeed binds an OutboxRepository to a pool for the relay.
type OutboxFeed struct {
	pool *pgxpool.Pool
	repo OutboxRepository
}

// NewOutboxFeed creates an OutboxFeed.
func NewOutboxFeed(pool *pgxpool.Pool) *OutboxFeed {
	return &OutboxFeed{pool: pool, repo: NewOutboxRepository()}
}

func (f *OutboxFeed) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxRecord, error) {
	return f.repo.FetchUnpublished(ctx, f.pool, limit)
}

func (f *OutboxFeed) MarkPublished(ctx context.Context, ids []int64) error {
	return f.repo.MarkPublished(ctx, f.pool, ids)
}
