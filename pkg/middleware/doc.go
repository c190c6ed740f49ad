// Package middleware provides the HTTP middleware that sits in front of the
// API handlers: authentication, workspace role resolution and rate limiting.
//
// A workspace-scoped route is wrapped in this order:
//
//	router.Use(middleware.Authenticate(issuer))
//	ws := router.PathPrefix("/workspaces/{workspaceId}").Subrouter()
//	ws.Use(middleware.WorkspaceRole(evaluator))
//	ws.Handle("/projects", evaluator.RequireAnyPermission(rbac.PermCreateProject)(h))
//
// Rate limiting comes in two flavours. RateLimitMiddleware keeps token
// buckets in process memory and limits general API traffic per user or per
// client address. LoginRateLimit counts login attempts in Redis so the limit
// holds across every instance.
package middleware
