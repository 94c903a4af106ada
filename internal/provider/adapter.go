package provider

import (
	"context"
	"errors"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrNotReady is returned by an adapter whose Initialize did not succeed.
	ErrNotReady = errors.New("provider not ready")
	// ErrNoFill means the provider had no ad to show; the chain moves on.
	ErrNoFill = errors.New("provider has no ad to show")
)

// AttemptRequest describes the ad the caller wants played.
type AttemptRequest struct {
	SessionID uuid.UUID
	UserID    string
	Placement domain.Placement
	Surface   string // opaque playback surface handle from the client
}

// Adapter is the capability set every ad provider implements. New providers
// are added by implementing it and registering them with a Chain.
type Adapter interface {
	ID() domain.ProviderID

	// Initialize prepares the provider. testMode asks real SDKs for test ads.
	Initialize(ctx context.Context, testMode bool) error

	// Attempt plays one ad. A returned error means the provider could not
	// serve; a result with Success=false means the ad ran but was not finished.
	Attempt(ctx context.Context, req AttemptRequest) (domain.ProviderAttemptResult, error)

	// Teardown releases provider resources.
	Teardown(ctx context.Context) error
}
