package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/observability"
)

// TokenVerifier checks a session token and returns its principal
type TokenVerifier interface {
	Verify(token string) (*auth.Principal, error)
}

// Authenticate requires a valid Bearer session token. The principal is added
// to the request context together with the user id used for logging.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteUnauthenticated(w, "missing or malformed authorization header")
				return
			}

			principal, err := verifier.Verify(token)
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).Debug("rejected session token")
				httputil.WriteUnauthenticated(w, "invalid or expired token")
				return
			}

			ctx := auth.WithPrincipal(r.Context(), principal)
			ctx = observability.WithUserID(ctx, principal.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Principal returns the authenticated caller of r, or nil
func Principal(r *http.Request) *auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
