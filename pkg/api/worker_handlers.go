package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/rbac"
)

func (s *Server) registerWorkerRoutes(api *mux.Router) {
	importHandler := httputil.MaxBytesMiddleware(s.cfg.MaxImportBytes)(
		s.scoped(s.importWorkers, rbac.PermManageWorkspaceSettings, rbac.PermAddMember))

	api.Handle("/workspaces/{workspaceId}/workers/import", importHandler).Methods(http.MethodPost)
	api.Handle("/workspaces/{workspaceId}/workers", s.scoped(s.listWorkers, rbac.PermViewOnly)).Methods(http.MethodGet)
}

// importWorkers handles POST /workspaces/{workspaceId}/workers/import. The
// roster is either the raw request body (text/csv) or the "file" part of a
// multipart form.
func (s *Server) importWorkers(w http.ResponseWriter, r *http.Request) {
	body := io.Reader(r.Body)
	source := ""

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httputil.WriteBadRequest(w, "CSV file is too large")
				return
			}
			httputil.WriteBadRequest(w, "CSV file is required")
			return
		}
		defer file.Close()
		body = file
		source = header.Filename
	}

	result, err := s.cfg.Workers.Import(r.Context(), principalID(r), middleware.WorkspaceID(r), source, body)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Workers imported successfully", map[string]interface{}{"result": result})
}

// listWorkers handles GET /workspaces/{workspaceId}/workers
func (s *Server) listWorkers(w http.ResponseWriter, r *http.Request) {
	list, err := s.cfg.Workers.List(r.Context(), middleware.WorkspaceID(r))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Workers fetched successfully", map[string]interface{}{"workers": list})
}
