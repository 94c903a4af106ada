package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
)

// HTTPSDKConfig configures an ad network reached over its mediation HTTP API.
type HTTPSDKConfig struct {
	ID      domain.ProviderID
	BaseURL string
	APIKey  string
	// RequestTimeout caps a single HTTP round trip. Playback itself is bounded
	// by the chain's per-provider timeout through the request context.
	RequestTimeout time.Duration
}

// HTTPSDK adapts a rewarded-video network whose playback is brokered by a
// server-side mediation endpoint. The playback surface is opaque to us.
type HTTPSDK struct {
	cfg      HTTPSDKConfig
	logger   *slog.Logger
	client   *http.Client
	ready    atomic.Bool
	testMode atomic.Bool
}

// NewHTTPSDK creates an HTTP-backed ad provider.
func NewHTTPSDK(cfg HTTPSDKConfig, logger *slog.Logger) *HTTPSDK {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &HTTPSDK{
		cfg:    cfg,
		logger: logger.With("provider", string(cfg.ID)),
		client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPSDK) ID() domain.ProviderID { return p.cfg.ID }

// Initialize checks the mediation endpoint is reachable and accepting requests.
func (p *HTTPSDK) Initialize(ctx context.Context, testMode bool) error {
	if p.cfg.BaseURL == "" {
		return fmt.Errorf("%s: base url not configured", p.cfg.ID)
	}

	url := fmt.Sprintf("%s/v1/init?test_mode=%t", p.cfg.BaseURL, testMode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("init call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("init returned %d", resp.StatusCode)
	}

	var body struct {
		Ready bool `json:"ready"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode init response: %w", err)
	}
	if !body.Ready {
		return ErrNotReady
	}

	p.testMode.Store(testMode)
	p.ready.Store(true)
	p.logger.Info("ad provider initialized", "test_mode", testMode)
	return nil
}

type showRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Placement string `json:"placement"`
	Surface   string `json:"surface,omitempty"`
	TestMode  bool   `json:"test_mode"`
}

type showResponse struct {
	Completed   bool   `json:"completed"`
	WatchTimeMs int64  `json:"watch_time_ms"`
	ErrorCode   string `json:"error_code,omitempty"`
}

// Attempt asks the network to show one rewarded ad and blocks until the
// viewer closes it or ctx expires.
func (p *HTTPSDK) Attempt(ctx context.Context, ar AttemptRequest) (domain.ProviderAttemptResult, error) {
	if !p.ready.Load() {
		return domain.ProviderAttemptResult{}, ErrNotReady
	}

	body, _ := json.Marshal(showRequest{
		SessionID: ar.SessionID.String(),
		UserID:    ar.UserID,
		Placement: string(ar.Placement),
		Surface:   ar.Surface,
		TestMode:  p.testMode.Load(),
	})
	url := fmt.Sprintf("%s/v1/rewarded/show", p.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.ProviderAttemptResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.ProviderAttemptResult{}, fmt.Errorf("show call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return domain.ProviderAttemptResult{}, ErrNoFill
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ProviderAttemptResult{}, fmt.Errorf("show returned %d", resp.StatusCode)
	}

	var out showResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ProviderAttemptResult{}, fmt.Errorf("decode show response: %w", err)
	}
	if out.ErrorCode == "no_fill" {
		return domain.ProviderAttemptResult{}, ErrNoFill
	}

	return domain.ProviderAttemptResult{
		ProviderID:  p.cfg.ID,
		Success:     out.Completed,
		WatchTimeMs: out.WatchTimeMs,
		ErrorCode:   out.ErrorCode,
	}, nil
}

// Teardown marks the adapter unusable until the next Initialize.
func (p *HTTPSDK) Teardown(_ context.Context) error {
	p.ready.Store(false)
	return nil
}

func (p *HTTPSDK) authorize(req *http.Request) {
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
}
