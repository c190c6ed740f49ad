package sso

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/config"
	"github.com/platinummonkey/taskhub/pkg/identity"
)

func TestNewProviders(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing configured", func(t *testing.T) {
		providers, err := NewProviders(ctx, config.OAuthConfig{})
		require.NoError(t, err)
		assert.Empty(t, providers)
	})

	t.Run("github only", func(t *testing.T) {
		providers, err := NewProviders(ctx, config.OAuthConfig{GitHub: config.OAuthProvider{
			ClientID:     "id",
			ClientSecret: "secret",
			RedirectURL:  "https://taskhub.example.com/api/v1/auth/oauth/github/callback",
		}})
		require.NoError(t, err)
		require.Len(t, providers, 1)
		assert.Equal(t, identity.ProviderGitHub, providers[identity.ProviderGitHub].Name())
	})

	t.Run("github without redirect", func(t *testing.T) {
		_, err := NewProviders(ctx, config.OAuthConfig{GitHub: config.OAuthProvider{ClientID: "id", ClientSecret: "secret"}})
		assert.ErrorContains(t, err, "redirect_url")
	})
}
