// Package rbac implements workspace access control.
//
// # Overview
//
// Access is decided in two steps. First the caller's effective role in a
// workspace is resolved from the membership ledger (Evaluator.ResolveRole).
// Then the role's permission set is checked against the permissions an
// operation requires (Evaluator.RequirePermission). Resolving once lets a
// request guard several operations with a single lookup.
//
// # Roles
//
// Roles are a fixed table seeded once at startup and never mutated at
// runtime:
//
//	SUPER_ADMIN  - every permission; held globally on the user record, never through membership
//	OWNER        - every permission
//	ADMIN        - project, task and member administration
//	MEMBER       - view projects, create and edit tasks
//	VIEW_ONLY    - read access
//
// # Super administrators
//
// A user whose global role is SUPER_ADMIN resolves to SUPER_ADMIN in every
// workspace, including workspaces where no membership row exists.
//
// # Any-of semantics
//
// RequirePermission passes when the role holds at least one of the required
// permissions:
//
//	err := evaluator.RequirePermission(ctx, role, rbac.PermCreateTask, rbac.PermViewOnly)
//
// # HTTP
//
// RequireAnyPermission wraps a handler and reads the role that
// middleware.WorkspaceRole placed in the request context.
package rbac
