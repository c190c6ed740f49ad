package sso

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/taskhub/pkg/identity"
)

// GoogleIssuerURL is Google's OpenID Connect issuer
const GoogleIssuerURL = "https://accounts.google.com"

// OIDCProvider logs users in through OpenID Connect
type OIDCProvider struct {
	name         identity.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewOIDCProvider discovers the issuer and creates a provider storing its
// logins under name
func NewOIDCProvider(ctx context.Context, name identity.Provider, config OIDCConfig) (*OIDCProvider, error) {
	if err := config.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", name, err)
	}

	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &OIDCProvider{
		name:     name,
		verifier: provider.Verifier(&oidc.Config{ClientID: config.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  config.RedirectURL,
			Scopes:       config.Scopes,
		},
	}, nil
}

// NewGoogleProvider creates an OIDCProvider for Google accounts
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string) (*OIDCProvider, error) {
	return NewOIDCProvider(ctx, identity.ProviderGoogle, OIDCConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		IssuerURL:    GoogleIssuerURL,
		RedirectURL:  redirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	})
}

// Name returns the account provider
func (p *OIDCProvider) Name() identity.Provider {
	return p.name
}

// AuthCodeURL returns the authorization URL for state. Offline access is
// requested so a refresh token is stored with the account.
func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

type idClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Exchange trades code for tokens and verifies the ID token
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*identity.ExternalLogin, error) {
	if code == "" {
		return nil, ErrMissingCode
	}

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in response")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("missing email in OIDC token")
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, fmt.Errorf("email %s is not verified", claims.Email)
	}

	login := &identity.ExternalLogin{
		Provider:     p.name,
		ProviderID:   idToken.Subject,
		DisplayName:  claims.Name,
		Email:        claims.Email,
		Picture:      claims.Picture,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		login.TokenExpiry = &expiry
	}
	return login, nil
}
