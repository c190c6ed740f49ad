// Package api provides the HTTP REST API server for taskhub.
//
// # Overview
//
// This package is the thin HTTP layer over the domain services. Handlers
// parse the request, call one service operation and write its result; every
// rule about tenancy, permissions and consistency lives in the services and
// in the middleware chain in front of them.
//
// # Architecture
//
// The API is built on gorilla/mux. Routes fall into three groups:
//
//   - Public: registration, password login and the external login flows
//   - Authenticated: routes that only need a valid session token
//   - Workspace scoped: routes under /api/v1/workspaces/{workspaceId}
//
// Workspace scoped routes run the same chain: middleware.Authenticate
// verifies the bearer token, middleware.WorkspaceRole resolves the caller's
// role in the workspace once, and rbac.RequireAnyPermission checks the
// route's permission list against that role.
//
// # API Endpoints
//
// Authentication:
//
//	POST   /api/v1/auth/register                       - Register an email/password user
//	POST   /api/v1/auth/login                          - Log in and receive a session token
//	GET    /api/v1/auth/me                             - Current user and workspace
//	GET    /api/v1/auth/oauth/{provider}/login         - Start an external login
//	GET    /api/v1/auth/oauth/{provider}/callback      - Finish an external login
//
// Workspaces and members:
//
//	POST   /api/v1/workspaces                          - Create a workspace
//	GET    /api/v1/workspaces                          - Workspaces of the caller
//	POST   /api/v1/workspaces/join/{inviteCode}        - Join by invite code
//	GET    /api/v1/workspaces/{workspaceId}            - Workspace with members
//	PUT    /api/v1/workspaces/{workspaceId}            - Rename or describe
//	DELETE /api/v1/workspaces/{workspaceId}            - Delete (owner only)
//	POST   /api/v1/workspaces/{workspaceId}/invite-code - Rotate the invite code
//	GET    /api/v1/workspaces/{workspaceId}/analytics  - Task totals
//	GET    /api/v1/workspaces/{workspaceId}/members    - Members and roles
//	PUT    /api/v1/workspaces/{workspaceId}/members/{userId}/role
//	DELETE /api/v1/workspaces/{workspaceId}/members/{userId}
//
// Projects, sprints and tasks live under
// /api/v1/workspaces/{workspaceId}/projects/{projectId}, worker rosters under
// /api/v1/workspaces/{workspaceId}/workers and notifications under
// /api/v1/notifications. See the RegisterRoutes functions for the full list.
//
// # Errors
//
// Failures are written by httputil.WriteAppError as
//
//	{"error": "Sprint not found", "code": "RESOURCE_NOT_FOUND"}
//
// with the status taken from the error kind: 404 NotFound, 403
// Unauthorized, 401 Unauthenticated, 400 BadRequest, 409 Conflict and 500
// for everything else.
package api
