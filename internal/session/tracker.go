// Package session owns the lifecycle of ad sessions and the per-user
// single-active-session slot.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/attaboy/adrewards/internal/guard"
	"github.com/attaboy/adrewards/internal/policy"
	"github.com/google/uuid"
)

// Counter key prefixes in the shared WindowCounter.
const (
	completedKeyPrefix = "ads:completed:"
	rewardedKeyPrefix  = "ads:rewarded:"
)

// Tracker is the single writer of session state. Slot claims and state
// transitions happen under one mutex and never span provider playback.
// Finished sessions are kept per user for Retention in copy-on-write slices
// so eligibility reads need no lock.
type Tracker struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.AdSession
	active   map[string]uuid.UUID

	history sync.Map // userID -> []domain.AdSession

	counters  guard.WindowCounter
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewTracker creates a tracker. counters receives completed and rewarded
// events for the fraud rate checks; retention bounds the in-memory history.
func NewTracker(counters guard.WindowCounter, retention time.Duration, logger *slog.Logger) *Tracker {
	return &Tracker{
		sessions:  make(map[uuid.UUID]*domain.AdSession),
		active:    make(map[string]uuid.UUID),
		counters:  counters,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the time source. Used by tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Now returns the tracker's current time.
func (t *Tracker) Now() time.Time {
	return t.now()
}

// Create claims the user's session slot and returns a new session in the
// created state. It fails with a CONFLICT error if the user already has one.
func (t *Tracker) Create(userID string, placement domain.Placement) (domain.AdSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.active[userID]; ok {
		return domain.AdSession{}, domain.ErrConflict("ad session " + id.String() + " already active for user")
	}

	s := &domain.AdSession{
		ID:        uuid.New(),
		UserID:    userID,
		Placement: placement,
		State:     domain.SessionCreated,
		CreatedAt: t.now(),
	}
	t.sessions[s.ID] = s
	t.active[userID] = s.ID
	return s.Clone(), nil
}

// Begin moves a created session to started and stamps the playback start.
func (t *Tracker) Begin(sessionID uuid.UUID) (domain.AdSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.transition(sessionID, domain.SessionStarted)
	if err != nil {
		return domain.AdSession{}, err
	}
	now := t.now()
	s.StartedAt = &now
	return s.Clone(), nil
}

// Complete records the provider's verdict. A successful view moves the
// session to completed, anything else to aborted. Either way the user's
// slot is released.
//
// Playback is measured from the serving adapter's start when the result
// carries one, so time lost on providers that failed first is not counted.
// Watch time is the shorter of that span and the time the provider reports,
// so neither a slow network nor an inflated report can stretch it.
func (t *Tracker) Complete(ctx context.Context, sessionID uuid.UUID, result domain.ProviderAttemptResult) (domain.AdSession, error) {
	next := domain.SessionAborted
	if result.Success {
		next = domain.SessionCompleted
	}

	t.mu.Lock()
	s, err := t.transition(sessionID, next)
	if err != nil {
		t.mu.Unlock()
		return domain.AdSession{}, err
	}

	now := t.now()
	if s.StartedAt == nil {
		s.StartedAt = &now
	}
	if st := result.StartedAt; !st.IsZero() && st.After(*s.StartedAt) && !st.After(now) {
		s.StartedAt = &st
	}
	end := now
	if result.WatchTimeMs > 0 {
		reported := s.StartedAt.Add(time.Duration(result.WatchTimeMs) * time.Millisecond)
		if reported.Before(end) {
			end = reported
		}
	}
	s.CompletedAt = &end
	s.Provider = result.ProviderID
	if !result.Success {
		s.Reason = result.ErrorCode
		if s.Reason == "" {
			s.Reason = domain.OutcomeAdNotCompleted
		}
	}
	t.finishLocked(s)
	out := s.Clone()
	t.mu.Unlock()

	if result.Success {
		t.record(ctx, completedKeyPrefix+out.UserID, now)
	}
	return out, nil
}

// Abort moves an active session to aborted with reason and frees the slot.
func (t *Tracker) Abort(sessionID uuid.UUID, reason string) (domain.AdSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.transition(sessionID, domain.SessionAborted)
	if err != nil {
		return domain.AdSession{}, err
	}
	now := t.now()
	s.CompletedAt = &now
	s.Reason = reason
	t.finishLocked(s)
	return s.Clone(), nil
}

// Reject marks a session fraud_rejected. It never carries a reward.
func (t *Tracker) Reject(sessionID uuid.UUID, reason string) (domain.AdSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.transition(sessionID, domain.SessionFraudRejected)
	if err != nil {
		return domain.AdSession{}, err
	}
	if s.CompletedAt == nil {
		now := t.now()
		s.CompletedAt = &now
	}
	s.Reason = reason
	s.Reward = nil
	t.finishLocked(s)
	return s.Clone(), nil
}

// Grant attaches a reward to a completed session. A reward is attached once.
func (t *Tracker) Grant(ctx context.Context, sessionID uuid.UUID, reward domain.Reward) (domain.AdSession, error) {
	t.mu.Lock()
	s, ok := t.sessions[sessionID]
	if !ok {
		t.mu.Unlock()
		return domain.AdSession{}, domain.ErrNotFound("ad session", sessionID.String())
	}
	if s.State != domain.SessionCompleted {
		t.mu.Unlock()
		return domain.AdSession{}, domain.ErrConflict("reward requires a completed session, got " + string(s.State))
	}
	if s.Reward != nil {
		t.mu.Unlock()
		return domain.AdSession{}, domain.ErrConflict("reward already granted")
	}
	r := reward
	s.Reward = &r
	t.finishLocked(s)
	out := s.Clone()
	t.mu.Unlock()

	t.record(ctx, rewardedKeyPrefix+out.UserID, t.now())
	return out, nil
}

// Discard drops a session that never began playback and frees the slot.
// It leaves no history: the attempt is treated as never started.
func (t *Tracker) Discard(sessionID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return domain.ErrNotFound("ad session", sessionID.String())
	}
	if s.State != domain.SessionCreated {
		return domain.ErrInvalidTransition(s.State, domain.SessionAborted)
	}
	delete(t.sessions, sessionID)
	if id, ok := t.active[s.UserID]; ok && id == sessionID {
		delete(t.active, s.UserID)
	}
	return nil
}

// Get returns a tracked session by ID.
func (t *Tracker) Get(sessionID uuid.UUID) (domain.AdSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[sessionID]
	if !ok {
		return domain.AdSession{}, false
	}
	return s.Clone(), true
}

// Active returns the user's active session, if any.
func (t *Tracker) Active(userID string) (domain.AdSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.active[userID]
	if !ok {
		return domain.AdSession{}, false
	}
	return t.sessions[id].Clone(), true
}

// Recent returns the user's finished sessions completed after since.
// It reads a published snapshot and takes no lock.
func (t *Tracker) Recent(userID string, since time.Time) []domain.AdSession {
	v, ok := t.history.Load(userID)
	if !ok {
		return nil
	}
	all := v.([]domain.AdSession)
	out := make([]domain.AdSession, 0, len(all))
	for i := range all {
		if all[i].CompletedAt != nil && all[i].CompletedAt.After(since) {
			out = append(out, all[i].Clone())
		}
	}
	return out
}

// FraudStats reads the user's rate counters for InspectSession.
func (t *Tracker) FraudStats(ctx context.Context, userID string) (policy.FraudStats, error) {
	now := t.now()
	completed, err := t.counters.Count(ctx, completedKeyPrefix+userID, now.Add(-time.Hour))
	if err != nil {
		return policy.FraudStats{}, err
	}
	rewarded, err := t.counters.Count(ctx, rewardedKeyPrefix+userID, now.Add(-24*time.Hour))
	if err != nil {
		return policy.FraudStats{}, err
	}
	return policy.FraudStats{CompletedLastHour: completed, RewardedLastDay: rewarded}, nil
}

// Expire aborts every active session created at or before cutoff and drops
// finished sessions older than the retention window. It returns the sessions
// it aborted.
func (t *Tracker) Expire(cutoff time.Time) []domain.AdSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var expired []domain.AdSession
	for userID, id := range t.active {
		s := t.sessions[id]
		if s.CreatedAt.After(cutoff) {
			continue
		}
		s.State = domain.SessionAborted
		s.CompletedAt = &now
		s.Reason = domain.AbortExpired
		t.finishLocked(s)
		expired = append(expired, s.Clone())
		t.logger.Info("ad session expired", "session_id", id, "user_id", userID)
	}

	horizon := now.Add(-t.retention)
	for id, s := range t.sessions {
		if s.State.Terminal() && s.CompletedAt != nil && s.CompletedAt.Before(horizon) {
			delete(t.sessions, id)
		}
	}
	t.history.Range(func(k, v any) bool {
		kept := pruneHistory(v.([]domain.AdSession), horizon)
		if len(kept) == 0 {
			t.history.Delete(k)
		} else {
			t.history.Store(k, kept)
		}
		return true
	})
	return expired
}

// ActiveCount returns the number of occupied slots.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

func (t *Tracker) transition(sessionID uuid.UUID, next domain.SessionState) (*domain.AdSession, error) {
	s, ok := t.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound("ad session", sessionID.String())
	}
	if !s.State.CanTransition(next) {
		return nil, domain.ErrInvalidTransition(s.State, next)
	}
	s.State = next
	return s, nil
}

// finishLocked frees the slot and publishes the session into history.
// Callers hold t.mu.
func (t *Tracker) finishLocked(s *domain.AdSession) {
	if id, ok := t.active[s.UserID]; ok && id == s.ID {
		delete(t.active, s.UserID)
	}

	var prev []domain.AdSession
	if v, ok := t.history.Load(s.UserID); ok {
		prev = v.([]domain.AdSession)
	}
	next := pruneHistory(prev, t.now().Add(-t.retention))
	replaced := false
	for i := range next {
		if next[i].ID == s.ID {
			next[i] = s.Clone()
			replaced = true
		}
	}
	if !replaced {
		next = append(next, s.Clone())
	}
	t.history.Store(s.UserID, next)
}

// pruneHistory returns a fresh slice without sessions finished before horizon.
func pruneHistory(in []domain.AdSession, horizon time.Time) []domain.AdSession {
	out := make([]domain.AdSession, 0, len(in)+1)
	for i := range in {
		if in[i].CompletedAt != nil && in[i].CompletedAt.Before(horizon) {
			continue
		}
		out = append(out, in[i])
	}
	return out
}

func (t *Tracker) record(ctx context.Context, key string, at time.Time) {
	if err := t.counters.Record(ctx, key, at); err != nil {
		t.logger.Error("rate counter update failed", "key", key, "error", err)
	}
}
