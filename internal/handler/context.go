package handler

import (
	"net/http"

	"github.com/attaboy/adrewards/internal/auth"
	"github.com/attaboy/adrewards/internal/domain"
)

// userIDFromContext returns the authenticated player's opaque user reference.
func userIDFromContext(r *http.Request) (string, error) {
	sub := auth.SubjectFromContext(r.Context())
	if sub == "" {
		return "", domain.ErrUnauthorized("no subject in context")
	}
	if err := domain.ValidateUserID(sub); err != nil {
		return "", domain.ErrUnauthorized("invalid subject")
	}
	return sub, nil
}
