package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		assert.Equal(t, KindNotFound, KindOf(NotFound("workspace not found")))
		assert.Equal(t, KindConflict, KindOf(Conflict("duplicate", nil)))
	})

	t.Run("wrapped", func(t *testing.T) {
		err := fmt.Errorf("failed to resolve role: %w", Unauthorized("not a member"))
		assert.Equal(t, KindUnauthorized, KindOf(err))
		assert.True(t, IsUnauthorized(err))
	})

	t.Run("plain error is internal", func(t *testing.T) {
		assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	})
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{NotFound("x"), http.StatusNotFound, CodeNotFound},
		{Unauthorized("x"), http.StatusForbidden, CodeUnauthorized},
		{Unauthenticated("x"), http.StatusUnauthorized, CodeUnauthorized},
		{BadRequest("x"), http.StatusBadRequest, CodeValidation},
		{Conflict("x", errors.New("unique")), http.StatusConflict, CodeConflict},
		{errors.New("db down"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	cause := errors.New("pq: duplicate key value")
	err := fmt.Errorf("failed to create sprint: %w", Conflict("sprint number already taken", cause))

	assert.Equal(t, "sprint number already taken", PublicMessage(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal server error", PublicMessage(errors.New("secret detail")))
}
