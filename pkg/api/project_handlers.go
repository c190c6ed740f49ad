package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/projects"
	"github.com/platinummonkey/taskhub/pkg/rbac"
)

const projectPath = "/workspaces/{workspaceId}/projects/{projectId}"

func (s *Server) registerProjectRoutes(api *mux.Router) {
	api.Handle("/workspaces/{workspaceId}/projects", s.scoped(s.createProject, rbac.PermCreateProject)).Methods(http.MethodPost)
	api.Handle("/workspaces/{workspaceId}/projects", s.scoped(s.listProjects, rbac.PermViewOnly)).Methods(http.MethodGet)
	api.Handle(projectPath, s.scoped(s.getProject, rbac.PermViewOnly)).Methods(http.MethodGet)
	api.Handle(projectPath, s.scoped(s.updateProject, rbac.PermEditProject)).Methods(http.MethodPut)
	api.Handle(projectPath, s.scoped(s.deleteProject, rbac.PermDeleteProject)).Methods(http.MethodDelete)
	api.Handle(projectPath+"/analytics", s.scoped(s.projectAnalytics, rbac.PermViewOnly)).Methods(http.MethodGet)
}

// createProject handles POST /api/v1/workspaces/{workspaceId}/projects
func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var in projects.CreateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	project, err := s.cfg.Projects.Create(r.Context(), principalID(r), middleware.WorkspaceID(r), in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusCreated, "Project created successfully", map[string]interface{}{"project": project})
}

// listProjects handles GET /api/v1/workspaces/{workspaceId}/projects
// Query params:
//   - pageNumber: 1-based page, default 1
//   - pageSize: 1..100, default 10
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := s.cfg.Projects.List(r.Context(), middleware.WorkspaceID(r), page)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Projects fetched successfully", map[string]interface{}{
		"projects":   result.Projects,
		"pagination": result.Pagination,
	})
}

// getProject handles GET /api/v1/workspaces/{workspaceId}/projects/{projectId}
func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.cfg.Projects.Get(r.Context(), middleware.WorkspaceID(r), mux.Vars(r)["projectId"])
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Project fetched successfully", map[string]interface{}{"project": project})
}

// updateProject handles PUT /api/v1/workspaces/{workspaceId}/projects/{projectId}
func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var in projects.UpdateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	project, err := s.cfg.Projects.Update(r.Context(), principalID(r), middleware.WorkspaceID(r), mux.Vars(r)["projectId"], in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Project updated successfully", map[string]interface{}{"project": project})
}

// deleteProject handles DELETE /api/v1/workspaces/{workspaceId}/projects/{projectId}
func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Projects.Delete(r.Context(), principalID(r), middleware.WorkspaceID(r), mux.Vars(r)["projectId"]); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Project deleted successfully", nil)
}

// projectAnalytics handles GET /api/v1/workspaces/{workspaceId}/projects/{projectId}/analytics
func (s *Server) projectAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := s.cfg.Projects.Analytics(r.Context(), middleware.WorkspaceID(r), mux.Vars(r)["projectId"])
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Project analytics retrieved successfully", map[string]interface{}{"analytics": analytics})
}
