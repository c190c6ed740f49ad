package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/rbac"
)

// WorkspaceVar is the route variable holding the workspace id
const WorkspaceVar = "workspaceId"

// RoleResolver resolves a user's effective role in a workspace
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID, workspaceID string) (rbac.RoleName, error)
}

// WorkspaceRole resolves the caller's role in the routed workspace once per
// request and stores it for rbac.RequireAnyPermission. It must run after
// Authenticate.
func WorkspaceRole(resolver RoleResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := Principal(r)
			if principal == nil {
				httputil.WriteUnauthenticated(w, "authentication required")
				return
			}

			workspaceID := mux.Vars(r)[WorkspaceVar]
			if workspaceID == "" {
				httputil.WriteAppError(w, apperrors.BadRequest("workspace id is required"))
				return
			}

			role, err := resolver.ResolveRole(r.Context(), principal.UserID, workspaceID)
			if err != nil {
				httputil.WriteAppError(w, err)
				return
			}

			ctx := rbac.WithRole(r.Context(), role)
			ctx = observability.WithWorkspaceID(ctx, workspaceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WorkspaceID returns the workspace id stored by WorkspaceRole
func WorkspaceID(r *http.Request) string {
	return observability.GetWorkspaceID(r.Context())
}
