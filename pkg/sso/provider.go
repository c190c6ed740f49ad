package sso

import (
	"context"
	"fmt"

	"github.com/platinummonkey/taskhub/pkg/config"
	"github.com/platinummonkey/taskhub/pkg/identity"
)

// NewProviders builds every provider that has client credentials configured.
// Google needs network access for discovery.
func NewProviders(ctx context.Context, cfg config.OAuthConfig) (map[identity.Provider]Provider, error) {
	providers := make(map[identity.Provider]Provider)

	if cfg.GitHub.Enabled() {
		p, err := NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.RedirectURL)
		if err != nil {
			return nil, err
		}
		providers[p.Name()] = p
	}

	if cfg.Google.Enabled() {
		p, err := NewGoogleProvider(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
		if err != nil {
			return nil, fmt.Errorf("failed to set up google login: %w", err)
		}
		providers[p.Name()] = p
	}

	return providers, nil
}
