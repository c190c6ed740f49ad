// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
)

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteMessage writes {"message": message} plus any extra fields
func WriteMessage(w http.ResponseWriter, status int, message string, extra map[string]interface{}) error {
	body := map[string]interface{}{"message": message}
	for k, v := range extra {
		body[k] = v
	}
	return WriteJSON(w, status, body)
}

// WriteAppError maps err to its status code and writes the error envelope.
// Errors that are not application errors are reported without detail.
func WriteAppError(w http.ResponseWriter, err error) {
	_ = WriteJSON(w, apperrors.HTTPStatus(err), ErrorResponse{
		Error: apperrors.PublicMessage(err),
		Code:  apperrors.Code(err),
	})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteAppError(w, apperrors.BadRequest(message))
}

// WriteUnauthenticated writes a missing-credentials error (401)
func WriteUnauthenticated(w http.ResponseWriter, message string) {
	WriteAppError(w, apperrors.Unauthenticated(message))
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	_ = WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: message, Code: "RATE_LIMITED"})
}
