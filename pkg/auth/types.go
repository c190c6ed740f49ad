package auth

import (
	"context"

	"github.com/platinummonkey/taskhub/pkg/contextkeys"
)

// Principal is the authenticated caller of a request
type Principal struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	GlobalRole string `json:"globalRole"`
}

// WithPrincipal stores p in ctx
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextkeys.PrincipalKey, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextkeys.PrincipalKey).(*Principal)
	return p, ok && p != nil
}
