package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/attaboy/adrewards/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AdEngine is the slice of service.AdEngine the HTTP layer needs.
type AdEngine interface {
	CheckEligibility(ctx context.Context, userID string, placement domain.Placement) (domain.EligibilitySnapshot, error)
	WatchAd(ctx context.Context, req service.WatchRequest) (*domain.WatchResult, error)
	RetryPersistence(ctx context.Context, userID string, sessionID uuid.UUID) (*domain.WatchResult, error)
	ActiveSession(userID string) (domain.AdSession, bool)
	RecentSessions(ctx context.Context, userID string) ([]domain.AdSession, error)
}

// AdsHandler serves the player-facing rewarded ad endpoints.
type AdsHandler struct {
	engine AdEngine
}

// NewAdsHandler creates a new AdsHandler.
func NewAdsHandler(engine AdEngine) *AdsHandler {
	return &AdsHandler{engine: engine}
}

// GetEligibility handles GET /ads/eligibility?placement=.
func (h *AdsHandler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	snap, err := h.engine.CheckEligibility(r.Context(), userID, domain.Placement(r.URL.Query().Get("placement")))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, snap)
}

// watchAdRequest is the player's body. Reward overrides are set only by
// in-process callers, so an override_amount field here is ignored.
type watchAdRequest struct {
	Placement domain.Placement `json:"placement"`
	Surface   string           `json:"surface,omitempty"`
}

// watchAdErrorResponse carries the watch outcome alongside a
// PERSISTENCE_ERROR so the client can retry storage with the session ID.
type watchAdErrorResponse struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Result  *domain.WatchResult `json:"result"`
}

// WatchAd handles POST /ads/watch. The request blocks for the ad's playback.
func (h *AdsHandler) WatchAd(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req watchAdRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	result, err := h.engine.WatchAd(r.Context(), service.WatchRequest{
		UserID:    userID,
		Placement: req.Placement,
		Surface:   req.Surface,
	})
	if err != nil {
		respondWatchError(w, result, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// RetryPersistence handles POST /ads/sessions/{id}/persist.
func (h *AdsHandler) RetryPersistence(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid session id"))
		return
	}

	result, err := h.engine.RetryPersistence(r.Context(), userID, sessionID)
	if err != nil {
		respondWatchError(w, result, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// GetActiveSession handles GET /ads/sessions/active.
func (h *AdsHandler) GetActiveSession(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	s, ok := h.engine.ActiveSession(userID)
	if !ok {
		RespondJSON(w, http.StatusNoContent, nil)
		return
	}
	RespondJSON(w, http.StatusOK, s)
}

func respondWatchError(w http.ResponseWriter, result *domain.WatchResult, err error) {
	var appErr *domain.AppError
	if result == nil || !errors.As(err, &appErr) {
		RespondError(w, err)
		return
	}
	RespondJSON(w, appErr.Status, watchAdErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Result:  result,
	})
}
