package rbac

import (
	"context"
	"net/http"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/contextkeys"
	"github.com/platinummonkey/taskhub/pkg/httputil"
)

// WithRole stores the caller's resolved workspace role in ctx
func WithRole(ctx context.Context, role RoleName) context.Context {
	return context.WithValue(ctx, contextkeys.WorkspaceRoleKey, role)
}

// RoleFromContext returns the role stored by WithRole
func RoleFromContext(ctx context.Context) (RoleName, bool) {
	role, ok := ctx.Value(contextkeys.WorkspaceRoleKey).(RoleName)
	return role, ok
}

// RequireAnyPermission rejects requests whose workspace role grants none of
// perms. It must run after the middleware that resolves the role.
func (e *Evaluator) RequireAnyPermission(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				httputil.WriteAppError(w, apperrors.Unauthorized("workspace role not resolved"))
				return
			}
			if err := e.RequirePermission(r.Context(), role, perms...); err != nil {
				httputil.WriteAppError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
