package sso

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/taskhub/pkg/identity"
)

// ErrMissingCode is returned when a callback carries no authorization code
var ErrMissingCode = errors.New("missing authorization code")

// Provider is one external identity provider
type Provider interface {
	// Name is the account provider the logins are stored under
	Name() identity.Provider

	// AuthCodeURL is where the browser is sent to sign in
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for the caller's identity
	Exchange(ctx context.Context, code string) (*identity.ExternalLogin, error)
}

// OAuth2Config holds the settings of a plain OAuth2 provider
type OAuth2Config struct {
	ClientID     string
	ClientSecret string `json:"-"`
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	EmailsURL    string
	RedirectURL  string
	Scopes       []string
}

// ValidateConfig checks the fields every OAuth2 flow needs
func (c *OAuth2Config) ValidateConfig() error {
	switch {
	case c.ClientID == "":
		return fmt.Errorf("client_id is required")
	case c.ClientSecret == "":
		return fmt.Errorf("client_secret is required")
	case c.AuthURL == "":
		return fmt.Errorf("auth_url is required")
	case c.TokenURL == "":
		return fmt.Errorf("token_url is required")
	case c.UserInfoURL == "":
		return fmt.Errorf("user_info_url is required")
	case c.RedirectURL == "":
		return fmt.Errorf("redirect_url is required")
	}
	return nil
}

// OIDCConfig holds the settings of an OpenID Connect provider
type OIDCConfig struct {
	ClientID     string
	ClientSecret string `json:"-"`
	IssuerURL    string
	RedirectURL  string
	Scopes       []string
}

// ValidateConfig checks the fields discovery and verification need
func (c *OIDCConfig) ValidateConfig() error {
	switch {
	case c.ClientID == "":
		return fmt.Errorf("client_id is required")
	case c.ClientSecret == "":
		return fmt.Errorf("client_secret is required")
	case c.IssuerURL == "":
		return fmt.Errorf("issuer_url is required")
	case c.RedirectURL == "":
		return fmt.Errorf("redirect_url is required")
	}
	for _, scope := range c.Scopes {
		if scope == "openid" {
			return nil
		}
	}
	return fmt.Errorf("'openid' scope is required for OIDC")
}
