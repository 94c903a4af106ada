package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/attaboy/adrewards/internal/guard"
	"github.com/attaboy/adrewards/internal/policy"
	"github.com/attaboy/adrewards/internal/provider"
	"github.com/attaboy/adrewards/internal/session"
	"github.com/google/uuid"
)

// SessionStore is the durable home of ad sessions and rewards.
type SessionStore interface {
	// RecentSessions returns the user's finished sessions completed after since.
	// An empty placement returns every placement.
	RecentSessions(ctx context.Context, userID string, placement domain.Placement, since time.Time) ([]domain.AdSession, error)

	// PersistSession upserts a terminal session and its outbox event.
	PersistSession(ctx context.Context, s domain.AdSession) error

	// PersistReward records a granted reward. Repeating it for the same session is a no-op.
	PersistReward(ctx context.Context, userID string, s domain.AdSession) error
}

// PremiumResolver reports whether a user has an ad-free subscription.
type PremiumResolver interface {
	IsPremium(ctx context.Context, userID string) (bool, error)
}

// Observer receives engine outcomes for metrics.
type Observer interface {
	ObserveEligibility(placement domain.Placement, reason string)
	ObserveSession(s domain.AdSession)
	ObservePersistFailure(op string)
}

// Notifier pushes finished results to a connected player.
type Notifier interface {
	NotifyResult(userID string, result domain.WatchResult)
}

// EngineConfig bundles the policy inputs.
type EngineConfig struct {
	Eligibility policy.EligibilityConfig
	Fraud       policy.FraudConfig
	Reward      policy.RewardConfig
	SessionTTL  time.Duration
	ReapEvery   time.Duration
}

// WatchRequest is one watchAd call. OverrideAmount is for trusted in-process
// callers such as the wheel or trading service; the HTTP layer never sets it.
type WatchRequest struct {
	UserID         string
	Placement      domain.Placement
	OverrideAmount *int64
	Surface        string
}

type noopObserver struct{}

func (noopObserver) ObserveEligibility(domain.Placement, string) {}
func (noopObserver) ObserveSession(domain.AdSession)             {}
func (noopObserver) ObservePersistFailure(string)                {}

// AdEngine orchestrates eligibility, playback, fraud inspection and rewards.
// One instance is built at startup and shared by all callers.
type AdEngine struct {
	tracker  *session.Tracker
	chain    *provider.Chain
	store    SessionStore
	premium  PremiumResolver
	cfg      EngineConfig
	retries  *guard.KeyLock
	observer Observer
	notifier Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]domain.AdSession
}

// NewAdEngine creates an AdEngine.
func NewAdEngine(
	tracker *session.Tracker,
	chain *provider.Chain,
	store SessionStore,
	premium PremiumResolver,
	cfg EngineConfig,
	logger *slog.Logger,
) *AdEngine {
	return &AdEngine{
		tracker:  tracker,
		chain:    chain,
		store:    store,
		premium:  premium,
		cfg:      cfg,
		retries:  guard.NewKeyLock(),
		observer: noopObserver{},
		logger:   logger,
		pending:  make(map[uuid.UUID]domain.AdSession),
	}
}

// WithObserver attaches a metrics observer.
func (e *AdEngine) WithObserver(o Observer) *AdEngine {
	e.observer = o
	return e
}

// WithNotifier attaches a live result notifier.
func (e *AdEngine) WithNotifier(n Notifier) *AdEngine {
	e.notifier = n
	return e
}

// CheckEligibility reports whether the user may watch an ad for placement now.
func (e *AdEngine) CheckEligibility(ctx context.Context, userID string, placement domain.Placement) (domain.EligibilitySnapshot, error) {
	snap, _, err := e.evaluate(ctx, userID, placement)
	if err != nil {
		return domain.EligibilitySnapshot{}, err
	}
	e.observer.ObserveEligibility(placement, snap.Reason)
	return snap, nil
}

func (e *AdEngine) evaluate(ctx context.Context, userID string, placement domain.Placement) (domain.EligibilitySnapshot, []domain.AdSession, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return domain.EligibilitySnapshot{}, nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidatePlacement(placement); err != nil {
		return domain.EligibilitySnapshot{}, nil, domain.ErrValidation(err.Error())
	}

	isPremium, err := e.premium.IsPremium(ctx, userID)
	if err != nil {
		return domain.EligibilitySnapshot{}, nil, domain.ErrInternal("premium lookup", err)
	}
	now := e.tracker.Now()
	if isPremium {
		return policy.EvaluateEligibility(userID, placement, true, nil, e.cfg.Eligibility, now), nil, nil
	}

	stored, err := e.store.RecentSessions(ctx, userID, placement, now.Add(-policy.EligibilityWindow))
	if err != nil {
		return domain.EligibilitySnapshot{}, nil, domain.ErrInternal("load recent sessions", err)
	}

	snap := policy.EvaluateEligibility(userID, placement, false, e.mergeRecent(userID, stored, now), e.cfg.Eligibility, now)
	if snap.Eligible {
		if _, busy := e.tracker.Active(userID); busy {
			snap.Eligible = false
			snap.Reason = domain.ReasonSessionActive
		}
	}
	return snap, stored, nil
}

// mergeRecent overlays the tracker's in-memory window on stored sessions.
// In-memory copies win since they may not be persisted yet.
func (e *AdEngine) mergeRecent(userID string, stored []domain.AdSession, now time.Time) []domain.AdSession {
	byID := make(map[uuid.UUID]domain.AdSession, len(stored))
	for _, s := range stored {
		byID[s.ID] = s
	}
	for _, s := range e.tracker.Recent(userID, now.Add(-policy.EligibilityWindow)) {
		byID[s.ID] = s
	}
	out := make([]domain.AdSession, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	return out
}

// WatchAd runs one rewarded-ad attempt end to end.
//
// Ineligible requests fail with INELIGIBLE before any session exists, and a
// user with an active session gets CONFLICT. Fraud rejection and unfinished
// views are reported in the result, not as errors. If the outcome cannot be
// stored, the result is returned together with PERSISTENCE_ERROR and the
// caller should use RetryPersistence instead of showing another ad.
func (e *AdEngine) WatchAd(ctx context.Context, req WatchRequest) (*domain.WatchResult, error) {
	if err := domain.ValidateOverrideAmount(req.OverrideAmount); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	snap, stored, err := e.evaluate(ctx, req.UserID, req.Placement)
	if err != nil {
		return nil, err
	}
	e.observer.ObserveEligibility(req.Placement, snap.Reason)
	if snap.Reason == domain.ReasonSessionActive {
		return nil, domain.ErrConflict("an ad session is already active")
	}
	if !snap.Eligible {
		return nil, domain.ErrIneligible(snap.Reason)
	}

	s, err := e.tracker.Create(req.UserID, req.Placement)
	if err != nil {
		return nil, err
	}

	// Another session may have finished between the check and the claim.
	now := e.tracker.Now()
	recheck := policy.EvaluateEligibility(req.UserID, req.Placement, false, e.mergeRecent(req.UserID, stored, now), e.cfg.Eligibility, now)
	if !recheck.Eligible {
		if derr := e.tracker.Discard(s.ID); derr != nil {
			e.logger.Error("discard ad session failed", "session_id", s.ID, "error", derr)
		}
		return nil, domain.ErrIneligible(recheck.Reason)
	}

	if s, err = e.tracker.Begin(s.ID); err != nil {
		return nil, err
	}

	log := e.logger.With("session_id", s.ID, "user_id", req.UserID, "placement", req.Placement)

	res, err := e.chain.Attempt(ctx, provider.AttemptRequest{
		SessionID: s.ID,
		UserID:    req.UserID,
		Placement: req.Placement,
		Surface:   req.Surface,
	})
	if err != nil {
		reason := domain.AbortProviderFailed
		if ctx.Err() != nil {
			reason = domain.AbortCancelled
		}
		aborted, aerr := e.tracker.Abort(s.ID, reason)
		if aerr != nil {
			return nil, fmt.Errorf("abort session: %w", aerr)
		}
		log.Warn("ad session aborted", "reason", reason, "error", err)
		result, ferr := e.finish(context.WithoutCancel(ctx), aborted)
		if ferr != nil {
			return result, errors.Join(err, ferr)
		}
		return result, err
	}

	s, err = e.tracker.Complete(ctx, s.ID, res)
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	if s.State != domain.SessionCompleted {
		log.Info("ad not completed", "provider", s.Provider, "reason", s.Reason)
		return e.finish(ctx, s)
	}

	stats, err := e.tracker.FraudStats(ctx, req.UserID)
	if err != nil {
		// Rate counters are unavailable; the watch-time check still applies.
		log.Error("fraud stats unavailable", "error", err)
		stats = policy.FraudStats{}
	}
	verdict := policy.InspectSession(&s, stats, e.cfg.Fraud)
	if !verdict.Accepted {
		if s, err = e.tracker.Reject(s.ID, verdict.Reason); err != nil {
			return nil, fmt.Errorf("reject session: %w", err)
		}
		log.Warn("ad session rejected", "reason", verdict.Reason, "flags", verdict.Flags, "watch_time_ms", s.WatchTimeMs())
		return e.finish(ctx, s)
	}

	reward := policy.ComputeReward(req.Placement, e.cfg.Reward, req.OverrideAmount)
	if s, err = e.tracker.Grant(ctx, s.ID, reward); err != nil {
		return nil, fmt.Errorf("grant reward: %w", err)
	}
	log.Info("ad reward granted", "provider", s.Provider, "kind", reward.Kind, "amount", reward.Amount, "watch_time_ms", s.WatchTimeMs())
	return e.finish(ctx, s)
}

// finish persists a terminal session and notifies the player. On a storage
// failure the session is parked for RetryPersistence.
func (e *AdEngine) finish(ctx context.Context, s domain.AdSession) (*domain.WatchResult, error) {
	e.observer.ObserveSession(s)
	result := resultFor(s)

	if err := e.persist(ctx, s); err != nil {
		e.mu.Lock()
		e.pending[s.ID] = s
		e.mu.Unlock()
		e.logger.Error("ad session not persisted", "session_id", s.ID, "user_id", s.UserID, "error", err)
		return result, domain.ErrPersistence(err)
	}

	if e.notifier != nil {
		e.notifier.NotifyResult(s.UserID, *result)
	}
	return result, nil
}

func (e *AdEngine) persist(ctx context.Context, s domain.AdSession) error {
	if err := e.store.PersistSession(ctx, s); err != nil {
		e.observer.ObservePersistFailure("session")
		return fmt.Errorf("persist session: %w", err)
	}
	if s.Rewarded() {
		if err := e.store.PersistReward(ctx, s.UserID, s); err != nil {
			e.observer.ObservePersistFailure("reward")
			return fmt.Errorf("persist reward: %w", err)
		}
	}
	return nil
}

// RetryPersistence re-attempts storage of a session whose WatchAd call
// returned PERSISTENCE_ERROR. The ad is never shown again.
func (e *AdEngine) RetryPersistence(ctx context.Context, userID string, sessionID uuid.UUID) (*domain.WatchResult, error) {
	if check := e.retries.TryLock(sessionID); !check.Allowed {
		return nil, domain.ErrDuplicateRequest(check.Reason)
	}
	defer e.retries.Unlock(sessionID)

	e.mu.Lock()
	s, ok := e.pending[sessionID]
	e.mu.Unlock()
	if !ok || s.UserID != userID {
		return nil, domain.ErrNotFound("pending ad session", sessionID.String())
	}

	result := resultFor(s)
	if err := e.persist(ctx, s); err != nil {
		e.logger.Error("ad session retry not persisted", "session_id", s.ID, "error", err)
		return result, domain.ErrPersistence(err)
	}

	e.mu.Lock()
	delete(e.pending, sessionID)
	e.mu.Unlock()
	e.logger.Info("ad session persisted on retry", "session_id", s.ID, "user_id", s.UserID)

	if e.notifier != nil {
		e.notifier.NotifyResult(s.UserID, *result)
	}
	return result, nil
}

// PendingCount returns how many sessions await a persistence retry.
func (e *AdEngine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// ActiveSession returns the user's in-flight session, if any.
func (e *AdEngine) ActiveSession(userID string) (domain.AdSession, bool) {
	return e.tracker.Active(userID)
}

// RecentSessions returns the user's sessions from the last 24h across all
// placements, newest first.
func (e *AdEngine) RecentSessions(ctx context.Context, userID string) ([]domain.AdSession, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	now := e.tracker.Now()
	stored, err := e.store.RecentSessions(ctx, userID, "", now.Add(-policy.EligibilityWindow))
	if err != nil {
		return nil, domain.ErrInternal("load recent sessions", err)
	}
	out := e.mergeRecent(userID, stored, now)
	sort.Slice(out, func(i, j int) bool {
		return completedAt(out[i]).After(completedAt(out[j]))
	})
	return out, nil
}

// StartReaper launches the TTL sweep that frees abandoned session slots.
func (e *AdEngine) StartReaper(ctx context.Context) *session.Reaper {
	r := session.NewReaper(e.tracker, e.cfg.SessionTTL, e.cfg.ReapEvery, func(ctx context.Context, s domain.AdSession) {
		if _, err := e.finish(ctx, s); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("expired session parked for retry", "session_id", s.ID, "error", err)
		}
	}, e.logger)
	r.Start(ctx)
	return r
}

func completedAt(s domain.AdSession) time.Time {
	if s.CompletedAt != nil {
		return *s.CompletedAt
	}
	return s.CreatedAt
}

func resultFor(s domain.AdSession) *domain.WatchResult {
	r := &domain.WatchResult{
		Success:     s.Rewarded(),
		SessionID:   s.ID,
		WatchTimeMs: s.WatchTimeMs(),
		Placement:   s.Placement,
		Provider:    s.Provider,
	}
	if s.Rewarded() {
		reward := *s.Reward
		r.Reward = &reward
	}
	switch s.State {
	case domain.SessionFraudRejected:
		r.Error = domain.OutcomeFraudDetected
	case domain.SessionAborted:
		switch s.Reason {
		case domain.AbortCancelled, domain.AbortExpired, domain.AbortProviderFailed:
			r.Error = s.Reason
		default:
			r.Error = domain.OutcomeAdNotCompleted
		}
	}
	return r
}
