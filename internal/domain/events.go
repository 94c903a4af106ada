package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionEventType maps a terminal session state to its outbox event type.
func SessionEventType(state SessionState) (EventType, bool) {
	switch state {
	case SessionCompleted:
		return EventSessionCompleted, true
	case SessionAborted:
		return EventSessionAborted, true
	case SessionFraudRejected:
		return EventSessionFraudRejected, true
	default:
		return "", false
	}
}

// NewSessionFinishedEvent creates the outbox event for a session reaching a terminal state.
// The partition key is the user so per-user ordering is preserved downstream.
func NewSessionFinishedEvent(s *AdSession) OutboxDraft {
	evtType, _ := SessionEventType(s.State)
	payload, _ := json.Marshal(map[string]interface{}{
		"session_id":    s.ID.String(),
		"user_id":       s.UserID,
		"placement":     s.Placement,
		"provider":      s.Provider,
		"state":         s.State,
		"watch_time_ms": s.WatchTimeMs(),
		"reason":        s.Reason,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateAdSession,
		AggregateID:   s.ID.String(),
		EventType:     evtType,
		PartitionKey:  s.UserID,
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewRewardGrantedEvent creates the event consumed by the task, wheel and trading services.
func NewRewardGrantedEvent(userID string, sessionID uuid.UUID, placement Placement, reward Reward) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"session_id": sessionID.String(),
		"user_id":    userID,
		"placement":  placement,
		"reward":     reward,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateReward,
		AggregateID:   sessionID.String(),
		EventType:     EventRewardGranted,
		PartitionKey:  userID,
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}
