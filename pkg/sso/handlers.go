package sso

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/identity"
	"github.com/platinummonkey/taskhub/pkg/observability"
)

const (
	stateCookie    = "taskhub_oauth_state"
	stateCookieTTL = 10 * time.Minute
	callbackPath   = "/auth/callback"
)

// LoginService resolves an external login to a user
type LoginService interface {
	LoginOrCreateAccount(ctx context.Context, in identity.ExternalLogin) (*identity.User, error)
}

// SessionIssuer issues session tokens
type SessionIssuer interface {
	Issue(p auth.Principal) (string, time.Time, error)
}

// Handlers runs the browser side of external logins
type Handlers struct {
	providers     map[identity.Provider]Provider
	logins        LoginService
	issuer        SessionIssuer
	frontendURL   string
	secureCookies bool
}

// NewHandlers creates the login handlers. Users land on frontendURL once
// the flow finishes.
func NewHandlers(providers map[identity.Provider]Provider, logins LoginService, issuer SessionIssuer, frontendURL string) *Handlers {
	return &Handlers{
		providers:     providers,
		logins:        logins,
		issuer:        issuer,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
		secureCookies: strings.HasPrefix(frontendURL, "https://"),
	}
}

// RegisterRoutes registers the login routes on router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/oauth/{provider}/login", h.initiateLogin).Methods(http.MethodGet)
	router.HandleFunc("/auth/oauth/{provider}/callback", h.handleCallback).Methods(http.MethodGet)
}

func (h *Handlers) provider(r *http.Request) (Provider, bool) {
	name := identity.Provider(strings.ToUpper(mux.Vars(r)["provider"]))
	p, ok := h.providers[name]
	return p, ok
}

// initiateLogin handles GET /auth/oauth/{provider}/login
func (h *Handlers) initiateLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(r)
	if !ok {
		httputil.WriteAppError(w, apperrors.NotFound("Login provider not found"))
		return
	}

	state, err := auth.RandomState()
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
}

// handleCallback handles GET /auth/oauth/{provider}/callback
func (h *Handlers) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	p, ok := h.provider(r)
	if !ok {
		httputil.WriteAppError(w, apperrors.NotFound("Login provider not found"))
		return
	}

	// the state cookie is single use
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		logger.Warn("oauth callback with missing or mismatched state")
		h.fail(w, r)
		return
	}
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		logger.WithField("error", errParam).Info("oauth login declined at provider")
		h.fail(w, r)
		return
	}

	login, err := p.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		logger.WithField("provider", string(p.Name())).WithError(err).Warn("oauth exchange failed")
		h.fail(w, r)
		return
	}

	user, err := h.logins.LoginOrCreateAccount(ctx, *login)
	if err != nil {
		logger.WithField("provider", string(p.Name())).WithError(err).Error("oauth login failed")
		h.fail(w, r)
		return
	}

	token, _, err := h.issuer.Issue(auth.Principal{UserID: user.ID, Email: user.Email, GlobalRole: user.GlobalRole})
	if err != nil {
		logger.WithError(err).Error("failed to issue session token")
		h.fail(w, r)
		return
	}

	fragment := url.Values{"token": {token}}
	if user.CurrentWorkspaceID != nil {
		fragment.Set("workspace", *user.CurrentWorkspaceID)
	}
	http.Redirect(w, r, h.frontendURL+callbackPath+"#"+fragment.Encode(), http.StatusFound)
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.frontendURL+callbackPath+"?status=failure", http.StatusFound)
}
