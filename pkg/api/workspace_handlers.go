package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/workspaces"
)

type changeRoleRequest struct {
	RoleName rbac.RoleName `json:"roleName"`
}

func (s *Server) registerWorkspaceRoutes(api *mux.Router) {
	api.Handle("/workspaces", s.authenticated(s.createWorkspace)).Methods(http.MethodPost)
	api.Handle("/workspaces", s.authenticated(s.listWorkspaces)).Methods(http.MethodGet)
	api.Handle("/workspaces/join/{inviteCode}", s.authenticated(s.joinWorkspace)).Methods(http.MethodPost)

	api.Handle("/workspaces/{workspaceId}", s.scoped(s.getWorkspace, rbac.PermViewOnly)).Methods(http.MethodGet)
	api.Handle("/workspaces/{workspaceId}", s.scoped(s.updateWorkspace, rbac.PermEditWorkspace)).Methods(http.MethodPut)
	api.Handle("/workspaces/{workspaceId}", s.scoped(s.deleteWorkspace, rbac.PermDeleteWorkspace)).Methods(http.MethodDelete)
	api.Handle("/workspaces/{workspaceId}/invite-code", s.scoped(s.resetInviteCode, rbac.PermManageWorkspaceSettings)).Methods(http.MethodPost)
	api.Handle("/workspaces/{workspaceId}/analytics", s.scoped(s.workspaceAnalytics, rbac.PermViewOnly)).Methods(http.MethodGet)

	api.Handle("/workspaces/{workspaceId}/members", s.scoped(s.listMembers, rbac.PermViewOnly)).Methods(http.MethodGet)
	api.Handle("/workspaces/{workspaceId}/members/{userId}/role", s.scoped(s.changeMemberRole, rbac.PermChangeMemberRole)).Methods(http.MethodPut)
	api.Handle("/workspaces/{workspaceId}/members/{userId}", s.scoped(s.removeMember, rbac.PermRemoveMember)).Methods(http.MethodDelete)
}

// createWorkspace handles POST /api/v1/workspaces
func (s *Server) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var in workspaces.CreateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	ws, err := s.cfg.Workspaces.Create(r.Context(), principalID(r), in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusCreated, "Workspace created successfully", map[string]interface{}{"workspace": ws})
}

// listWorkspaces handles GET /api/v1/workspaces
func (s *Server) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	p := middleware.Principal(r)
	list, err := s.cfg.Workspaces.ListForUser(r.Context(), p.UserID, p.GlobalRole)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Workspaces fetched successfully", map[string]interface{}{"workspaces": list})
}

// joinWorkspace handles POST /api/v1/workspaces/join/{inviteCode}
func (s *Server) joinWorkspace(w http.ResponseWriter, r *http.Request) {
	code, ok := httputil.ParsePathStringOrError(w, r, "inviteCode")
	if !ok {
		return
	}

	result, err := s.cfg.Workspaces.JoinByInvite(r.Context(), principalID(r), code)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Successfully joined the workspace", map[string]interface{}{
		"workspaceId": result.WorkspaceID,
		"role":        result.Role,
	})
}

// getWorkspace handles GET /api/v1/workspaces/{workspaceId}
func (s *Server) getWorkspace(w http.ResponseWriter, r *http.Request) {
	detail, err := s.cfg.Workspaces.Get(r.Context(), middleware.WorkspaceID(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Workspace fetched successfully", map[string]interface{}{"workspace": detail})
}

// updateWorkspace handles PUT /api/v1/workspaces/{workspaceId}
func (s *Server) updateWorkspace(w http.ResponseWriter, r *http.Request) {
	var in workspaces.UpdateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	ws, err := s.cfg.Workspaces.Update(r.Context(), principalID(r), middleware.WorkspaceID(r), in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Workspace updated successfully", map[string]interface{}{"workspace": ws})
}

// deleteWorkspace handles DELETE /api/v1/workspaces/{workspaceId}. The
// response carries the caller's current workspace after the repoint.
func (s *Server) deleteWorkspace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := principalID(r)

	if err := s.cfg.Workspaces.Delete(ctx, middleware.WorkspaceID(r), userID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	user, err := s.cfg.Identity.GetUser(ctx, userID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Workspace deleted successfully", map[string]interface{}{
		"currentWorkspace": user.CurrentWorkspaceID,
	})
}

// resetInviteCode handles POST /api/v1/workspaces/{workspaceId}/invite-code
func (s *Server) resetInviteCode(w http.ResponseWriter, r *http.Request) {
	ws, err := s.cfg.Workspaces.ResetInviteCode(r.Context(), middleware.WorkspaceID(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Invite code reset successfully", map[string]interface{}{"workspace": ws})
}

// workspaceAnalytics handles GET /api/v1/workspaces/{workspaceId}/analytics
func (s *Server) workspaceAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := s.cfg.Workspaces.Analytics(r.Context(), middleware.WorkspaceID(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Workspace analytics retrieved successfully", map[string]interface{}{"analytics": summary})
}

// listMembers handles GET /api/v1/workspaces/{workspaceId}/members
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	view, err := s.cfg.Workspaces.ListMembers(r.Context(), middleware.WorkspaceID(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Workspace members retrieved successfully", map[string]interface{}{
		"members": view.Members,
		"roles":   view.Roles,
	})
}

// changeMemberRole handles PUT /api/v1/workspaces/{workspaceId}/members/{userId}/role
func (s *Server) changeMemberRole(w http.ResponseWriter, r *http.Request) {
	memberID, ok := httputil.ParsePathStringOrError(w, r, "userId")
	if !ok {
		return
	}
	var in changeRoleRequest
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	member, err := s.cfg.Workspaces.ChangeMemberRole(r.Context(), principalID(r), middleware.WorkspaceID(r), memberID, in.RoleName)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Member role changed successfully", map[string]interface{}{"member": member})
}

// removeMember handles DELETE /api/v1/workspaces/{workspaceId}/members/{userId}
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := httputil.ParsePathStringOrError(w, r, "userId")
	if !ok {
		return
	}

	if err := s.cfg.Workspaces.RemoveMember(r.Context(), principalID(r), middleware.WorkspaceID(r), memberID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Member removed successfully", nil)
}
