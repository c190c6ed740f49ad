// Package contextkeys provides centralized context key definitions
//
// All context keys shared across packages are defined here so their producers
// and consumers stay discoverable.
//
//	ctx = context.WithValue(ctx, contextkeys.PrincipalKey, principal)
//	principal, _ := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
package contextkeys

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *auth.Principal
	// Set by: middleware.Authenticate (pkg/middleware/auth.go)
	// Required by: every protected API endpoint
	PrincipalKey Key = "principal"

	// WorkspaceIDKey contains the workspace id string taken from the route
	// Set by: middleware.WorkspaceRole (pkg/middleware/workspace.go)
	WorkspaceIDKey Key = "workspace_id"

	// WorkspaceRoleKey contains the caller's rbac.RoleName in the routed workspace
	// Set by: middleware.WorkspaceRole
	// Required by: rbac.RequireAnyPermission
	WorkspaceRoleKey Key = "workspace_role"

	// RequestIDKey contains the request id string (UUID)
	// Set by: httputil.RequestIDMiddleware via observability.WithRequestID
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user id string
	// Set by: middleware.Authenticate via observability.WithUserID
	// Used by: observability.FromContext
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	LoggerKey Key = "logger"
)
