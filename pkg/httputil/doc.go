// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Errors
//
// Handlers return domain errors from pkg/apperrors and hand them to WriteAppError,
// which picks the status code and writes the error envelope:
//
//	{"error": "Workspace not found", "code": "RESOURCE_NOT_FOUND"}
//
// Errors that are not application errors become a 500 with a generic message.
//
// # Request Parsing
//
//	var req CreateTaskRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	page, err := httputil.ParsePage(r)        // pageNumber, pageSize
//	statuses := httputil.ParseQueryList(r, "status")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
