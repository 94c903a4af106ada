package admin

import (
	"net/http"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/attaboy/adrewards/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AdsAdminHandler exposes ad session state for support tooling.
type AdsAdminHandler struct {
	engine handler.AdEngine
}

// NewAdsAdminHandler creates a new AdsAdminHandler.
func NewAdsAdminHandler(engine handler.AdEngine) *AdsAdminHandler {
	return &AdsAdminHandler{engine: engine}
}

type userSessionsResponse struct {
	UserID string             `json:"user_id"`
	Active *domain.AdSession  `json:"active"`
	Recent []domain.AdSession `json:"recent"`
}

// GetUserSessions handles GET /admin/ads/users/{userID}/sessions.
func (h *AdsAdminHandler) GetUserSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := domain.ValidateUserID(userID); err != nil {
		handler.RespondError(w, domain.ErrValidation(err.Error()))
		return
	}

	recent, err := h.engine.RecentSessions(r.Context(), userID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	resp := userSessionsResponse{UserID: userID, Recent: recent}
	if resp.Recent == nil {
		resp.Recent = []domain.AdSession{}
	}
	if s, ok := h.engine.ActiveSession(userID); ok {
		resp.Active = &s
	}
	handler.RespondJSON(w, http.StatusOK, resp)
}

// RetryPersistence handles POST /admin/ads/users/{userID}/sessions/{id}/persist.
// Support staff use it when the player's client gave up on a retry.
func (h *AdsAdminHandler) RetryPersistence(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := domain.ValidateUserID(userID); err != nil {
		handler.RespondError(w, domain.ErrValidation(err.Error()))
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handler.RespondError(w, domain.ErrValidation("invalid session id"))
		return
	}

	result, err := h.engine.RetryPersistence(r.Context(), userID, sessionID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, result)
}
