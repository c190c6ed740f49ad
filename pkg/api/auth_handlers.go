package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/identity"
	"github.com/platinummonkey/taskhub/pkg/middleware"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) registerAuthRoutes(api *mux.Router) {
	register := http.Handler(http.HandlerFunc(s.register))
	login := http.Handler(http.HandlerFunc(s.login))
	if s.cfg.LoginLimiter != nil {
		limit := middleware.LoginRateLimit(s.cfg.LoginLimiter)
		register = limit(register)
		login = limit(login)
	}

	api.Handle("/auth/register", register).Methods(http.MethodPost)
	api.Handle("/auth/login", login).Methods(http.MethodPost)
	api.Handle("/auth/me", s.authenticated(s.me)).Methods(http.MethodGet)
}

// register handles POST /api/v1/auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in identity.RegisterInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	userID, err := s.cfg.Identity.RegisterUser(r.Context(), in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusCreated, "User created successfully", map[string]interface{}{"userId": userID})
}

// login handles POST /api/v1/auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in loginRequest
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	user, err := s.cfg.Identity.VerifyUser(ctx, in.Email, in.Password)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	token, expiresAt, err := s.cfg.Tokens.Issue(auth.Principal{UserID: user.ID, Email: user.Email, GlobalRole: user.GlobalRole})
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	current, err := s.cfg.Identity.GetCurrentUser(ctx, user.ID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Logged in successfully", map[string]interface{}{
		"token":     token,
		"expiresAt": expiresAt,
		"user":      current,
	})
}

// me handles GET /api/v1/auth/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	current, err := s.cfg.Identity.GetCurrentUser(r.Context(), principalID(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "User fetched successfully", map[string]interface{}{"user": current})
}
