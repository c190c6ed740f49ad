package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteJSON(w, http.StatusOK, map[string]string{"message": "success"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "success")
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"not found", apperrors.NotFound("Workspace not found"), http.StatusNotFound, "RESOURCE_NOT_FOUND", "Workspace not found"},
		{"forbidden", apperrors.Unauthorized("nope"), http.StatusForbidden, "ACCESS_UNAUTHORIZED", "nope"},
		{"unauthenticated", apperrors.Unauthenticated("login"), http.StatusUnauthorized, "ACCESS_UNAUTHORIZED", "login"},
		{"bad request", apperrors.BadRequest("bad"), http.StatusBadRequest, "VALIDATION_ERROR", "bad"},
		{"wrapped conflict", fmt.Errorf("ctx: %w", apperrors.Conflict("taken", nil)), http.StatusConflict, "CONFLICT", "taken"},
		{"internal", errors.New("pq: connection reset"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteAppError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Error)
		})
	}
}

func TestWriteMessage(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteMessage(w, http.StatusOK, "done", map[string]interface{}{"count": 3}))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "done", body["message"])
	assert.Equal(t, float64(3), body["count"])
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
