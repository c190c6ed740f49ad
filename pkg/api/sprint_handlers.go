package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/sprints"
)

const sprintPath = projectPath + "/sprints/{sprintId}"

func (s *Server) registerSprintRoutes(api *mux.Router) {
	api.Handle(projectPath+"/sprints/next-number", s.scoped(s.nextSprintNumber, rbac.PermViewProject, rbac.PermViewOnly)).Methods(http.MethodGet)
	api.Handle(projectPath+"/sprints", s.scoped(s.createSprint, rbac.PermCreateTask)).Methods(http.MethodPost)
	api.Handle(projectPath+"/sprints", s.scoped(s.listSprints, rbac.PermViewProject, rbac.PermViewOnly)).Methods(http.MethodGet)
	api.Handle(sprintPath, s.scoped(s.getSprint, rbac.PermViewProject, rbac.PermViewOnly)).Methods(http.MethodGet)
	api.Handle(sprintPath, s.scoped(s.updateSprint, rbac.PermEditTask)).Methods(http.MethodPut)
	api.Handle(sprintPath, s.scoped(s.deleteSprint, rbac.PermDeleteTask)).Methods(http.MethodDelete)
	api.Handle(sprintPath+"/tasks", s.scoped(s.sprintTasks, rbac.PermViewProject, rbac.PermViewOnly)).Methods(http.MethodGet)
}

// nextSprintNumber handles GET .../projects/{projectId}/sprints/next-number
func (s *Server) nextSprintNumber(w http.ResponseWriter, r *http.Request) {
	n, err := s.cfg.Sprints.GetNextSprintNumber(r.Context(), middleware.WorkspaceID(r), mux.Vars(r)["projectId"])
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Next sprint number retrieved successfully", map[string]interface{}{"nextSprintNumber": n})
}

// createSprint handles POST .../projects/{projectId}/sprints
func (s *Server) createSprint(w http.ResponseWriter, r *http.Request) {
	var in sprints.CreateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	sprint, err := s.cfg.Sprints.Create(r.Context(), principalID(r), middleware.WorkspaceID(r), mux.Vars(r)["projectId"], in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusCreated, "Sprint created successfully", map[string]interface{}{"sprint": sprint})
}

// listSprints handles GET .../projects/{projectId}/sprints
// Query params:
//   - status: comma separated statuses
//   - keyword: matched against name and description
//   - pageNumber, pageSize
func (s *Server) listSprints(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	filter := sprints.Filter{Keyword: r.URL.Query().Get("keyword")}
	for _, status := range httputil.ParseQueryList(r, "status") {
		filter.Statuses = append(filter.Statuses, sprints.Status(status))
	}

	result, err := s.cfg.Sprints.List(r.Context(), middleware.WorkspaceID(r), mux.Vars(r)["projectId"], filter, page)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Sprints fetched successfully", map[string]interface{}{
		"sprints":    result.Sprints,
		"pagination": result.Pagination,
	})
}

// getSprint handles GET .../sprints/{sprintId}
func (s *Server) getSprint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sprint, err := s.cfg.Sprints.Get(r.Context(), middleware.WorkspaceID(r), vars["projectId"], vars["sprintId"])
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Sprint fetched successfully", map[string]interface{}{"sprint": sprint})
}

// updateSprint handles PUT .../sprints/{sprintId}
func (s *Server) updateSprint(w http.ResponseWriter, r *http.Request) {
	var in sprints.UpdateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	vars := mux.Vars(r)
	sprint, err := s.cfg.Sprints.Update(r.Context(), principalID(r), middleware.WorkspaceID(r), vars["projectId"], vars["sprintId"], in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Sprint updated successfully", map[string]interface{}{"sprint": sprint})
}

// deleteSprint handles DELETE .../sprints/{sprintId}
// Query params:
//   - deleteTasks: true deletes the sprint's tasks, false unassigns them.
//     Required when the sprint has tasks.
func (s *Server) deleteSprint(w http.ResponseWriter, r *http.Request) {
	deleteTasks, err := httputil.ParseQueryOptionalBool(r, "deleteTasks")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	vars := mux.Vars(r)
	result, err := s.cfg.Sprints.Delete(r.Context(), principalID(r), middleware.WorkspaceID(r), vars["projectId"], vars["sprintId"], deleteTasks)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// sprintTasks handles GET .../sprints/{sprintId}/tasks
func (s *Server) sprintTasks(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	list, err := s.cfg.Tasks.BySprint(r.Context(), middleware.WorkspaceID(r), vars["projectId"], vars["sprintId"])
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Sprint tasks fetched successfully", map[string]interface{}{"tasks": list})
}
