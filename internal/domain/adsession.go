package domain

import (
	"time"

	"github.com/google/uuid"
)

// Placement is the product context in which a rewarded ad is offered.
type Placement string

const (
	PlacementTaskCompletion   Placement = "task_completion"
	PlacementWheelSpin        Placement = "wheel_spin"
	PlacementBoxOpening       Placement = "box_opening"
	PlacementTradingBonus     Placement = "trading_bonus"
	PlacementScreenTransition Placement = "screen_transition"
)

// AllPlacements returns every known placement.
func AllPlacements() []Placement {
	return []Placement{
		PlacementTaskCompletion,
		PlacementWheelSpin,
		PlacementBoxOpening,
		PlacementTradingBonus,
		PlacementScreenTransition,
	}
}

// Valid reports whether p is a known placement.
func (p Placement) Valid() bool {
	for _, known := range AllPlacements() {
		if p == known {
			return true
		}
	}
	return false
}

// ProviderID identifies the adapter that served (or tried to serve) an ad.
type ProviderID string

const (
	ProviderPrimarySDK   ProviderID = "primary_sdk"
	ProviderSecondarySDK ProviderID = "secondary_sdk"
	ProviderSimulation   ProviderID = "simulation"
)

// SessionState tracks the lifecycle of an ad-watch attempt.
type SessionState string

const (
	SessionCreated       SessionState = "created"
	SessionStarted       SessionState = "started"
	SessionCompleted     SessionState = "completed"
	SessionAborted       SessionState = "aborted"
	SessionFraudRejected SessionState = "fraud_rejected"
)

// Active reports whether the state occupies the user's session slot.
func (s SessionState) Active() bool {
	return s == SessionCreated || s == SessionStarted
}

// Terminal reports whether no provider outcome can change the state anymore.
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionAborted || s == SessionFraudRejected
}

// CanTransition reports whether moving from s to next is a legal one-way step.
// created -> started -> completed | aborted; started | completed -> fraud_rejected.
// A created session may also be aborted or completed directly (no playback began).
func (s SessionState) CanTransition(next SessionState) bool {
	switch s {
	case SessionCreated:
		return next == SessionStarted || next == SessionCompleted || next == SessionAborted
	case SessionStarted:
		return next == SessionCompleted || next == SessionAborted || next == SessionFraudRejected
	case SessionCompleted:
		return next == SessionFraudRejected
	default:
		return false
	}
}

// AdSession is one attempt by a user to watch a rewarded ad.
type AdSession struct {
	ID          uuid.UUID    `json:"session_id"`
	UserID      string       `json:"user_id"`
	Placement   Placement    `json:"placement"`
	Provider    ProviderID   `json:"provider,omitempty"`
	State       SessionState `json:"state"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Reward      *Reward      `json:"reward,omitempty"`
	Reason      string       `json:"reason,omitempty"` // abort or rejection code
}

// WatchTime is completedAt - startedAt, or zero while either is unset.
func (s *AdSession) WatchTime() time.Duration {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return 0
	}
	d := s.CompletedAt.Sub(*s.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// WatchTimeMs is WatchTime in milliseconds.
func (s *AdSession) WatchTimeMs() int64 {
	return s.WatchTime().Milliseconds()
}

// Successful reports whether the session completed and was not rejected.
func (s *AdSession) Successful() bool {
	return s.State == SessionCompleted
}

// Rewarded reports whether a reward was attached to the session.
func (s *AdSession) Rewarded() bool {
	return s.State == SessionCompleted && s.Reward != nil
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *AdSession) Clone() AdSession {
	c := *s
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	if s.Reward != nil {
		r := *s.Reward
		c.Reward = &r
	}
	return c
}

// ProviderAttemptResult is what a single adapter call reports. StartedAt is
// stamped by the chain when the serving adapter was invoked.
type ProviderAttemptResult struct {
	ProviderID  ProviderID `json:"provider_id"`
	Success     bool       `json:"success"`
	WatchTimeMs int64      `json:"watch_time_ms"`
	ErrorCode   string     `json:"error_code,omitempty"`
	StartedAt   time.Time  `json:"-"`
}

// WatchResult is returned to the caller of WatchAd.
type WatchResult struct {
	Success     bool       `json:"success"`
	Reward      *Reward    `json:"reward,omitempty"`
	SessionID   uuid.UUID  `json:"session_id"`
	WatchTimeMs int64      `json:"watch_time_ms"`
	Placement   Placement  `json:"placement"`
	Provider    ProviderID `json:"provider,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// WatchResult error codes. These are outcomes, not Go errors.
const (
	OutcomeFraudDetected  = "fraud_detected"
	OutcomeAdNotCompleted = "ad_not_completed"
	OutcomeCancelled      = "cancelled"
)

// Abort reason codes.
const (
	AbortProviderFailed = "provider_failed"
	AbortCancelled      = "cancelled"
	AbortExpired        = "expired"
)
