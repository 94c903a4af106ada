package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventSessionCompleted     EventType = "ads.session.completed"
	EventSessionAborted       EventType = "ads.session.aborted"
	EventSessionFraudRejected EventType = "ads.session.fraud_rejected"
	EventRewardGranted        EventType = "ads.reward.granted"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateAdSession AggregateType = "ad_session"
	AggregateReward    AggregateType = "reward"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// OutboxRecord is a stored outbox row awaiting relay; ID is its sequence number.
type OutboxRecord struct {
	ID int64 `json:"id"`
	OutboxDraft
}
