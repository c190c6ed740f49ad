package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/rbac"
)

type pinRequest struct {
	Pinned bool `json:"pinned"`
}

func (s *Server) registerActivityRoutes(api *mux.Router) {
	api.Handle(projectPath+"/activities", s.scoped(s.listActivities, rbac.PermViewOnly)).Methods(http.MethodGet)
	api.Handle("/workspaces/{workspaceId}/activities/{activityId}/pin", s.scoped(s.pinActivity, rbac.PermEditProject)).Methods(http.MethodPut)

	api.Handle("/notifications", s.authenticated(s.listNotifications)).Methods(http.MethodGet)
	api.Handle("/notifications/read-all", s.authenticated(s.markAllNotificationsRead)).Methods(http.MethodPut)
	api.Handle("/notifications/{notificationId}/read", s.authenticated(s.markNotificationRead)).Methods(http.MethodPut)
}

// listActivities handles GET .../projects/{projectId}/activities
func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workspaceID := middleware.WorkspaceID(r)
	projectID := mux.Vars(r)["projectId"]

	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if _, err := s.cfg.Projects.Get(ctx, workspaceID, projectID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	result, err := s.cfg.Activity.ListProjectActivities(ctx, workspaceID, projectID, page)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Activities fetched successfully", map[string]interface{}{
		"activities": result.Activities,
		"pagination": result.Pagination,
	})
}

// pinActivity handles PUT /workspaces/{workspaceId}/activities/{activityId}/pin
func (s *Server) pinActivity(w http.ResponseWriter, r *http.Request) {
	var in pinRequest
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}

	a, err := s.cfg.Activity.SetPinned(r.Context(), middleware.WorkspaceID(r), mux.Vars(r)["activityId"], in.Pinned)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Activity updated successfully", map[string]interface{}{"activity": a})
}

// listNotifications handles GET /api/v1/notifications
// Query params:
//   - unreadOnly: only unread notifications
//   - pageNumber, pageSize
func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	unreadOnly, err := httputil.ParseQueryBool(r, "unreadOnly", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := s.cfg.Activity.ListNotifications(r.Context(), principalID(r), unreadOnly, page)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// markNotificationRead handles PUT /api/v1/notifications/{notificationId}/read
func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Activity.MarkRead(r.Context(), principalID(r), mux.Vars(r)["notificationId"]); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Notification marked as read", nil)
}

// markAllNotificationsRead handles PUT /api/v1/notifications/read-all
func (s *Server) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.cfg.Activity.MarkAllRead(r.Context(), principalID(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Notifications marked as read", map[string]interface{}{"updated": n})
}
