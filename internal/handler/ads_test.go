package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attaboy/adrewards/internal/auth"
	"github.com/attaboy/adrewards/internal/domain"
	"github.com/attaboy/adrewards/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	snap      domain.EligibilitySnapshot
	result    *domain.WatchResult
	err       error
	active    *domain.AdSession
	recent    []domain.AdSession
	lastWatch service.WatchRequest
	lastRetry uuid.UUID
}

func (f *fakeEngine) CheckEligibility(_ context.Context, _ string, placement domain.Placement) (domain.EligibilitySnapshot, error) {
	if err := domain.ValidatePlacement(placement); err != nil {
		return domain.EligibilitySnapshot{}, domain.ErrValidation(err.Error())
	}
	return f.snap, f.err
}

func (f *fakeEngine) WatchAd(_ context.Context, req service.WatchRequest) (*domain.WatchResult, error) {
	f.lastWatch = req
	return f.result, f.err
}

func (f *fakeEngine) RetryPersistence(_ context.Context, _ string, id uuid.UUID) (*domain.WatchResult, error) {
	f.lastRetry = id
	return f.result, f.err
}

func (f *fakeEngine) ActiveSession(string) (domain.AdSession, bool) {
	if f.active == nil {
		return domain.AdSession{}, false
	}
	return *f.active, true
}

func (f *fakeEngine) RecentSessions(context.Context, string) ([]domain.AdSession, error) {
	return f.recent, f.err
}

func newAdsRouter(engine AdEngine) http.Handler {
	h := NewAdsHandler(engine)
	r := chi.NewRouter()
	r.Use(JSONContentType)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sub := r.Header.Get("X-Test-User"); sub != "" {
				claims := &auth.Claims{Realm: auth.RealmPlayer}
				claims.Subject = sub
				r = r.WithContext(auth.WithClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/ads/eligibility", h.GetEligibility)
	r.Post("/ads/watch", h.WatchAd)
	r.Post("/ads/sessions/{id}/persist", h.RetryPersistence)
	r.Get("/ads/sessions/active", h.GetActiveSession)
	return r
}

func doRequest(h http.Handler, method, path, user string, body []byte) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, bytes.NewReader(body))
	if user != "" {
		r.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestAdsHandler_GetEligibility(t *testing.T) {
	next := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	engine := &fakeEngine{snap: domain.EligibilitySnapshot{
		Eligible:        false,
		Reason:          domain.ReasonCooldown,
		CanWatchAd:      false,
		NextAvailableAt: &next,
	}}
	router := newAdsRouter(engine)

	t.Run("returns snapshot", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/ads/eligibility?placement=wheel_spin", "user-1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var snap domain.EligibilitySnapshot
		require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
		assert.Equal(t, domain.ReasonCooldown, snap.Reason)
		require.NotNil(t, snap.NextAvailableAt)
		assert.True(t, next.Equal(*snap.NextAvailableAt))
	})

	t.Run("unknown placement", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/ads/eligibility?placement=lobby", "user-1", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no subject", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/ads/eligibility?placement=wheel_spin", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAdsHandler_WatchAd(t *testing.T) {
	sid := uuid.New()
	reward := domain.NewReward(domain.RewardCoins, 75)

	t.Run("success passes request through", func(t *testing.T) {
		engine := &fakeEngine{result: &domain.WatchResult{Success: true, SessionID: sid, Reward: &reward, Placement: domain.PlacementBoxOpening}}
		router := newAdsRouter(engine)

		w := doRequest(router, http.MethodPost, "/ads/watch", "user-1",
			[]byte(`{"placement":"box_opening","surface":"shop"}`))
		require.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, "user-1", engine.lastWatch.UserID)
		assert.Equal(t, domain.PlacementBoxOpening, engine.lastWatch.Placement)
		assert.Nil(t, engine.lastWatch.OverrideAmount)
		assert.Equal(t, "shop", engine.lastWatch.Surface)

		var res domain.WatchResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		assert.True(t, res.Success)
		assert.Equal(t, int64(75), res.Reward.Amount)
	})

	t.Run("player cannot set the reward amount", func(t *testing.T) {
		engine := &fakeEngine{result: &domain.WatchResult{Success: true, SessionID: sid, Reward: &reward, Placement: domain.PlacementBoxOpening}}

		w := doRequest(newAdsRouter(engine), http.MethodPost, "/ads/watch", "user-1",
			[]byte(`{"placement":"box_opening","override_amount":9223372036854775807}`))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.PlacementBoxOpening, engine.lastWatch.Placement)
		assert.Nil(t, engine.lastWatch.OverrideAmount)
	})

	t.Run("fraud rejection is a 200 with error code", func(t *testing.T) {
		engine := &fakeEngine{result: &domain.WatchResult{SessionID: sid, Error: domain.OutcomeFraudDetected}}
		w := doRequest(newAdsRouter(engine), http.MethodPost, "/ads/watch", "user-1", []byte(`{"placement":"wheel_spin"}`))
		require.Equal(t, http.StatusOK, w.Code)

		var res domain.WatchResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
		assert.False(t, res.Success)
		assert.Equal(t, domain.OutcomeFraudDetected, res.Error)
	})

	t.Run("ineligible", func(t *testing.T) {
		engine := &fakeEngine{err: domain.ErrIneligible(domain.ReasonDailyCap)}
		w := doRequest(newAdsRouter(engine), http.MethodPost, "/ads/watch", "user-1", []byte(`{"placement":"wheel_spin"}`))
		assert.Equal(t, http.StatusForbidden, w.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, domain.CodeIneligible, body["code"])
		assert.Equal(t, domain.ReasonDailyCap, body["message"])
	})

	t.Run("conflict", func(t *testing.T) {
		engine := &fakeEngine{err: domain.ErrConflict("session already active")}
		w := doRequest(newAdsRouter(engine), http.MethodPost, "/ads/watch", "user-1", []byte(`{"placement":"wheel_spin"}`))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("persistence error carries the result", func(t *testing.T) {
		engine := &fakeEngine{
			result: &domain.WatchResult{Success: true, SessionID: sid, Reward: &reward},
			err:    domain.ErrPersistence(errors.New("db down")),
		}
		w := doRequest(newAdsRouter(engine), http.MethodPost, "/ads/watch", "user-1", []byte(`{"placement":"box_opening"}`))
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body watchAdErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, domain.CodePersistence, body.Code)
		require.NotNil(t, body.Result)
		assert.Equal(t, sid, body.Result.SessionID)
	})

	t.Run("bad body", func(t *testing.T) {
		w := doRequest(newAdsRouter(&fakeEngine{}), http.MethodPost, "/ads/watch", "user-1", []byte(`{`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAdsHandler_RetryPersistence(t *testing.T) {
	sid := uuid.New()

	t.Run("retries the path session", func(t *testing.T) {
		engine := &fakeEngine{result: &domain.WatchResult{Success: true, SessionID: sid}}
		w := doRequest(newAdsRouter(engine), http.MethodPost, "/ads/sessions/"+sid.String()+"/persist", "user-1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, sid, engine.lastRetry)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := doRequest(newAdsRouter(&fakeEngine{}), http.MethodPost, "/ads/sessions/nope/persist", "user-1", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		engine := &fakeEngine{err: domain.ErrNotFound("pending ad session", sid.String())}
		w := doRequest(newAdsRouter(engine), http.MethodPost, "/ads/sessions/"+sid.String()+"/persist", "user-1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAdsHandler_GetActiveSession(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		w := doRequest(newAdsRouter(&fakeEngine{}), http.MethodGet, "/ads/sessions/active", "user-1", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("active", func(t *testing.T) {
		s := domain.AdSession{ID: uuid.New(), UserID: "user-1", Placement: domain.PlacementWheelSpin, State: domain.SessionStarted}
		w := doRequest(newAdsRouter(&fakeEngine{active: &s}), http.MethodGet, "/ads/sessions/active", "user-1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got domain.AdSession
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, domain.SessionStarted, got.State)
	})
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := HealthHandler(map[string]HealthCheck{"postgres": func(context.Context) error { return nil }})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "healthy")
	})

	t.Run("failing check", func(t *testing.T) {
		h := HealthHandler(map[string]HealthCheck{"redis": func(context.Context) error { return errors.New("refused") }})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "redis", body["check"])
	})
}

func TestCORSWithOrigins_List(t *testing.T) {
	h := CORSWithOrigins("https://a.example, https://b.example")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://b.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "https://b.example", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "https://a.example", w.Header().Get("Access-Control-Allow-Origin"))
}
