package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/activity"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/identity"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/projects"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/sprints"
	"github.com/platinummonkey/taskhub/pkg/sso"
	"github.com/platinummonkey/taskhub/pkg/tasks"
	"github.com/platinummonkey/taskhub/pkg/workers"
	"github.com/platinummonkey/taskhub/pkg/workspaces"
)

// DefaultMaxImportBytes bounds worker roster uploads
const DefaultMaxImportBytes = 1 << 20

// Config wires the server to its services. SSO and LoginLimiter are
// optional.
type Config struct {
	Identity   *identity.Service
	Workspaces *workspaces.Service
	Projects   *projects.Service
	Sprints    *sprints.Service
	Tasks      *tasks.Service
	Activity   *activity.Service
	Workers    *workers.Service

	Evaluator *rbac.Evaluator
	Tokens    *auth.TokenIssuer

	SSO            *sso.Handlers
	LoginLimiter   *middleware.DistributedRateLimiter
	MaxImportBytes int64
}

// Server represents our API server
type Server struct {
	router *mux.Router
	cfg    Config
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	if cfg.MaxImportBytes <= 0 {
		cfg.MaxImportBytes = DefaultMaxImportBytes
	}
	s := &Server{router: mux.NewRouter(), cfg: cfg}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	s.registerAuthRoutes(api)
	if s.cfg.SSO != nil {
		s.cfg.SSO.RegisterRoutes(api)
	}
	s.registerWorkspaceRoutes(api)
	s.registerProjectRoutes(api)
	s.registerSprintRoutes(api)
	s.registerTaskRoutes(api)
	s.registerActivityRoutes(api)
	s.registerWorkerRoutes(api)
}

// Router exposes the router so binaries can add health and metrics routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// authenticated wraps h so it only runs for a verified session
func (s *Server) authenticated(h http.HandlerFunc) http.Handler {
	return middleware.Authenticate(s.cfg.Tokens)(h)
}

// scoped wraps h so it only runs when the caller's role in the routed
// workspace grants at least one of perms
func (s *Server) scoped(h http.HandlerFunc, perms ...rbac.Permission) http.Handler {
	return httputil.Chain(
		middleware.Authenticate(s.cfg.Tokens),
		middleware.WorkspaceRole(s.cfg.Evaluator),
		s.cfg.Evaluator.RequireAnyPermission(perms...),
	)(h)
}

// principalID returns the authenticated user id. Handlers behind
// authenticated or scoped always have one.
func principalID(r *http.Request) string {
	if p := middleware.Principal(r); p != nil {
		return p.UserID
	}
	return ""
}
