package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/tasks"
)

const taskPath = projectPath + "/tasks/{taskId}"

type commentRequest struct {
	Message string `json:"message"`
}

func (s *Server) registerTaskRoutes(api *mux.Router) {
	api.Handle("/workspaces/{workspaceId}/tasks", s.scoped(s.listTasks, rbac.PermViewOnly)).Methods(http.MethodGet)
	api.Handle(projectPath+"/tasks", s.scoped(s.listTasks, rbac.PermViewOnly)).Methods(http.MethodGet)
	api.Handle(projectPath+"/tasks", s.scoped(s.createTask, rbac.PermCreateTask)).Methods(http.MethodPost)
	api.Handle(taskPath, s.scoped(s.getTask, rbac.PermViewOnly)).Methods(http.MethodGet)
	api.Handle(taskPath, s.scoped(s.updateTask, rbac.PermEditTask)).Methods(http.MethodPut)
	api.Handle(taskPath, s.scoped(s.deleteTask, rbac.PermDeleteTask)).Methods(http.MethodDelete)
	api.Handle(taskPath+"/predictions", s.scoped(s.updatePredictions, rbac.PermEditTask)).Methods(http.MethodPut)
	api.Handle(taskPath+"/predictions/refresh", s.scoped(s.refreshPredictions, rbac.PermEditTask)).Methods(http.MethodPost)
	api.Handle(taskPath+"/comments", s.scoped(s.addComment, rbac.PermCreateTask, rbac.PermEditTask)).Methods(http.MethodPost)
	api.Handle(taskPath+"/comments", s.scoped(s.listComments, rbac.PermViewOnly)).Methods(http.MethodGet)
}

// createTask handles POST .../projects/{projectId}/tasks
func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var in tasks.CreateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	task, err := s.cfg.Tasks.Create(r.Context(), principalID(r), middleware.WorkspaceID(r), mux.Vars(r)["projectId"], in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusCreated, "Task created successfully", map[string]interface{}{"task": task})
}

// listTasks handles GET /workspaces/{workspaceId}/tasks and
// GET .../projects/{projectId}/tasks
// Query params:
//   - projectId: only on the workspace route
//   - status, priority, assignedTo: comma separated
//   - sprint, keyword
//   - dueDate: YYYY-MM-DD, matches the whole day
//   - pageNumber, pageSize
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	dueDate, err := httputil.ParseQueryDate(r, "dueDate")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	query := r.URL.Query()
	filter := tasks.Filter{
		WorkspaceID: middleware.WorkspaceID(r),
		ProjectID:   mux.Vars(r)["projectId"],
		AssignedTo:  httputil.ParseQueryList(r, "assignedTo"),
		SprintID:    query.Get("sprint"),
		Keyword:     query.Get("keyword"),
		DueDate:     dueDate,
	}
	if filter.ProjectID == "" {
		filter.ProjectID = query.Get("projectId")
	}
	for _, status := range httputil.ParseQueryList(r, "status") {
		filter.Statuses = append(filter.Statuses, tasks.Status(status))
	}
	for _, priority := range httputil.ParseQueryList(r, "priority") {
		filter.Priorities = append(filter.Priorities, tasks.Priority(priority))
	}

	result, err := s.cfg.Tasks.List(r.Context(), filter, page)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "All tasks fetched successfully", map[string]interface{}{
		"tasks":      result.Tasks,
		"pagination": result.Pagination,
	})
}

// getTask handles GET .../tasks/{taskId}
func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	task, err := s.cfg.Tasks.Get(r.Context(), middleware.WorkspaceID(r), vars["projectId"], vars["taskId"])
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Task fetched successfully", map[string]interface{}{"task": task})
}

// updateTask handles PUT .../tasks/{taskId}
func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var in tasks.UpdateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	vars := mux.Vars(r)
	task, err := s.cfg.Tasks.Update(r.Context(), principalID(r), middleware.WorkspaceID(r), vars["projectId"], vars["taskId"], in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Task updated successfully", map[string]interface{}{"task": task})
}

// deleteTask handles DELETE .../tasks/{taskId}
func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.cfg.Tasks.Delete(r.Context(), principalID(r), middleware.WorkspaceID(r), vars["projectId"], vars["taskId"]); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Task deleted successfully", nil)
}

// updatePredictions handles PUT .../tasks/{taskId}/predictions
func (s *Server) updatePredictions(w http.ResponseWriter, r *http.Request) {
	var scores tasks.Scores
	if !httputil.ParseJSONOrError(w, r, &scores) {
		return
	}

	vars := mux.Vars(r)
	task, err := s.cfg.Tasks.UpdatePredictions(r.Context(), middleware.WorkspaceID(r), vars["projectId"], vars["taskId"], scores)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Task predictions updated successfully", map[string]interface{}{"task": task})
}

// refreshPredictions handles POST .../tasks/{taskId}/predictions/refresh
func (s *Server) refreshPredictions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	task, err := s.cfg.Tasks.RefreshPredictions(r.Context(), middleware.WorkspaceID(r), vars["projectId"], vars["taskId"])
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Task predictions refreshed successfully", map[string]interface{}{"task": task})
}

// addComment handles POST .../tasks/{taskId}/comments
func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	var in commentRequest
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	vars := mux.Vars(r)
	comment, err := s.cfg.Tasks.AddComment(r.Context(), principalID(r), middleware.WorkspaceID(r), vars["projectId"], vars["taskId"], in.Message)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusCreated, "Comment added successfully", map[string]interface{}{"comment": comment})
}

// listComments handles GET .../tasks/{taskId}/comments
func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	comments, err := s.cfg.Tasks.ListComments(r.Context(), middleware.WorkspaceID(r), vars["projectId"], vars["taskId"])
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Comments fetched successfully", map[string]interface{}{"comments": comments})
}
