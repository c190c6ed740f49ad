package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/platinummonkey/taskhub/pkg/identity"
)

// GitHub endpoints
const (
	GitHubAuthURL     = "https://github.com/login/oauth/authorize"
	GitHubTokenURL    = "https://github.com/login/oauth/access_token"
	GitHubUserInfoURL = "https://api.github.com/user"
	GitHubEmailsURL   = "https://api.github.com/user/emails"
)

// OAuth2Provider logs users in through a GitHub-style OAuth2 flow
type OAuth2Provider struct {
	name         identity.Provider
	config       OAuth2Config
	oauth2Config *oauth2.Config
}

// NewOAuth2Provider creates a provider storing its logins under name
func NewOAuth2Provider(name identity.Provider, config OAuth2Config) (*OAuth2Provider, error) {
	if err := config.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", name, err)
	}
	return &OAuth2Provider{
		name:   name,
		config: config,
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.AuthURL,
				TokenURL: config.TokenURL,
			},
			RedirectURL: config.RedirectURL,
			Scopes:      config.Scopes,
		},
	}, nil
}

// NewGitHubProvider creates an OAuth2Provider for github.com
func NewGitHubProvider(clientID, clientSecret, redirectURL string) (*OAuth2Provider, error) {
	return NewOAuth2Provider(identity.ProviderGitHub, OAuth2Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthURL:      GitHubAuthURL,
		TokenURL:     GitHubTokenURL,
		UserInfoURL:  GitHubUserInfoURL,
		EmailsURL:    GitHubEmailsURL,
		RedirectURL:  redirectURL,
		Scopes:       []string{"read:user", "user:email"},
	})
}

// Name returns the account provider
func (p *OAuth2Provider) Name() identity.Provider {
	return p.name
}

// AuthCodeURL returns the authorization URL for state
func (p *OAuth2Provider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

type gitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type gitHubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange trades code for a token and reads the user's profile. When the
// profile hides the email, the primary verified address is used.
func (p *OAuth2Provider) Exchange(ctx context.Context, code string) (*identity.ExternalLogin, error) {
	if code == "" {
		return nil, ErrMissingCode
	}

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	client := p.oauth2Config.Client(ctx, token)

	var user gitHubUser
	if err := getJSON(ctx, client, p.config.UserInfoURL, &user); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("missing user ID in OAuth2 response")
	}

	email := user.Email
	if email == "" && p.config.EmailsURL != "" {
		var emails []gitHubEmail
		if err := getJSON(ctx, client, p.config.EmailsURL, &emails); err != nil {
			return nil, fmt.Errorf("failed to fetch user emails: %w", err)
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		return nil, fmt.Errorf("missing email in OAuth2 response")
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	login := &identity.ExternalLogin{
		Provider:     p.name,
		ProviderID:   strconv.FormatInt(user.ID, 10),
		DisplayName:  name,
		Email:        email,
		Picture:      user.AvatarURL,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		login.TokenExpiry = &expiry
	}
	return login, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
