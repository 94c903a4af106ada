package app

import (
	"fmt"
	"log/slog"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/attaboy/adrewards/internal/guard"
	"github.com/attaboy/adrewards/internal/infra"
	"github.com/attaboy/adrewards/internal/provider"
)

// NewProviderChain builds the adapter chain in AD_PROVIDER_ORDER. Real SDKs
// get AD_PROVIDER_TIMEOUT; the simulation floor runs without a deadline.
func NewProviderChain(cfg *infra.Config, logger *slog.Logger) (*provider.Chain, error) {
	breaker := guard.NewCircuitBreaker(cfg.AdBreakerThreshold, cfg.AdBreakerReset)

	var entries []provider.Entry
	for _, id := range cfg.ProviderOrder() {
		switch id {
		case domain.ProviderPrimarySDK:
			entries = append(entries, provider.Entry{
				Adapter: provider.NewHTTPSDK(provider.HTTPSDKConfig{
					ID:             id,
					BaseURL:        cfg.AdPrimarySDKURL,
					APIKey:         cfg.AdPrimarySDKKey,
					RequestTimeout: cfg.AdProviderTimeout + cfg.AdProviderTimeout/2,
				}, logger),
				Timeout: cfg.AdProviderTimeout,
			})
		case domain.ProviderSecondarySDK:
			entries = append(entries, provider.Entry{
				Adapter: provider.NewHTTPSDK(provider.HTTPSDKConfig{
					ID:             id,
					BaseURL:        cfg.AdSecondarySDKURL,
					APIKey:         cfg.AdSecondarySDKKey,
					RequestTimeout: cfg.AdProviderTimeout + cfg.AdProviderTimeout/2,
				}, logger),
				Timeout: cfg.AdProviderTimeout,
			})
		case domain.ProviderSimulation:
			durations, err := provider.NewRandomDuration(cfg.AdSimulationMin, cfg.AdSimulationMax)
			if err != nil {
				return nil, fmt.Errorf("simulation durations: %w", err)
			}
			entries = append(entries, provider.Entry{Adapter: provider.NewSimulation(durations)})
		default:
			return nil, fmt.Errorf("unknown ad provider %q", id)
		}
	}

	return provider.NewChain(logger, breaker, entries...), nil
}
