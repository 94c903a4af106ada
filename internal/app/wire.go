package app

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/attaboy/adrewards/internal/auth"
	"github.com/attaboy/adrewards/internal/guard"
	"github.com/attaboy/adrewards/internal/handler"
	adminhandler "github.com/attaboy/adrewards/internal/handler/admin"
	"github.com/attaboy/adrewards/internal/infra"
	"github.com/attaboy/adrewards/internal/provider"
	"github.com/attaboy/adrewards/internal/repository"
	"github.com/attaboy/adrewards/internal/service"
	"github.com/go-chi/chi/v5"
)

var (
	_ service.SessionStore     = (*repository.Store)(nil)
	_ service.PremiumResolver  = (*repository.Store)(nil)
	_ service.Observer         = (*infra.Metrics)(nil)
	_ service.Notifier         = (*infra.WSHub)(nil)
	_ provider.AttemptObserver = (*infra.Metrics)(nil)
	_ guard.WindowCounter      = (*infra.RedisWindowCounter)(nil)
	_ infra.OutboxSource       = (*repository.OutboxFeed)(nil)
	_ handler.AdEngine         = (*service.AdEngine)(nil)
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Engine       handler.AdEngine
	Hub          *infra.WSHub
	Metrics      *infra.Metrics
	JWTMgr       *auth.JWTManager
	Logger       *slog.Logger
	CORSOrigins  string
	HealthChecks map[string]handler.HealthCheck
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	jwtMgr := deps.JWTMgr

	adsHandler := handler.NewAdsHandler(deps.Engine)
	streamHandler := handler.NewStreamHandler(deps.Hub, originAllowed(deps.CORSOrigins), logger)
	adsAdmin := adminhandler.NewAdsAdminHandler(deps.Engine)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(deps.CORSOrigins))

	// Prometheus sets its own content type.
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// WebSocket upgrade, no JSON content type
	r.With(auth.AuthenticatePlayer(jwtMgr)).Get("/ads/stream", streamHandler.Stream)

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)

		r.Get("/health", handler.HealthHandler(deps.HealthChecks))

		// Player-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthenticatePlayer(jwtMgr))

			r.Route("/ads", func(r chi.Router) {
				r.Get("/eligibility", adsHandler.GetEligibility)
				r.Post("/watch", adsHandler.WatchAd)
				r.Get("/sessions/active", adsHandler.GetActiveSession)
				r.Post("/sessions/{id}/persist", adsHandler.RetryPersistence)
			})
		})

		// Admin-authenticated routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.AuthenticateAdmin(jwtMgr))
			r.Use(auth.RequireRole(auth.AllAdminRoles()...))

			r.Get("/ads/users/{userID}/sessions", adsAdmin.GetUserSessions)
			r.With(auth.RequireRole(auth.WriteRoles()...)).
				Post("/ads/users/{userID}/sessions/{id}/persist", adsAdmin.RetryPersistence)
		})
	})

	return r
}

// originAllowed mirrors the CORS list for WebSocket handshakes. "*" or an
// empty list accepts any origin.
func originAllowed(origins string) func(string) bool {
	allowed := make(map[string]bool)
	for _, o := range splitList(origins) {
		if o == "*" {
			return nil
		}
		allowed[o] = true
	}
	if len(allowed) == 0 {
		return nil
	}
	return func(origin string) bool { return allowed[origin] }
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
