package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_Status(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		typ    ErrorType
		status int
	}{
		{"validation", NewValidationError("bad"), ErrorTypeValidation, http.StatusBadRequest},
		{"not found", NewNotFoundError("session"), ErrorTypeNotFound, http.StatusNotFound},
		{"conflict", NewConflictError("busy"), ErrorTypeConflict, http.StatusConflict},
		{"unauthorized", NewUnauthorizedError(""), ErrorTypeUnauthorized, http.StatusUnauthorized},
		{"forbidden", NewForbiddenError(""), ErrorTypeForbidden, http.StatusForbidden},
		{"internal", NewInternalError("boom"), ErrorTypeInternal, http.StatusInternalServerError},
		{"session not found", NewSessionNotFoundError(), ErrorTypeNotFound, http.StatusNotFound},
		{"session limit", NewSessionLimitError(5), ErrorTypeConflict, http.StatusConflict},
		{"unavailable", NewUnavailableError("auth"), ErrorTypeUnavailable, http.StatusServiceUnavailable},
		{"external", NewExternalError("supabase", errors.New("down")), ErrorTypeExternal, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.NotEmpty(t, tt.err.StackTrace)
		})
	}
}

func TestGetAppError_ThroughWrapping(t *testing.T) {
	base := NewSessionNotFoundError()
	wrapped := fmt.Errorf("lookup: %w", base)

	appErr := GetAppError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, CodeSessionNotFound, appErr.Code)
	assert.True(t, HasCode(wrapped, CodeSessionNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeSessionNotFound))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsConflict(wrapped))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ctx"))

	plain := errors.New("disk")
	err := Wrap(plain, "saving")
	assert.True(t, IsType(err, ErrorTypeInternal))
	assert.ErrorIs(t, err, plain)

	err = Wrap(NewValidationError("bad id"), "open session")
	assert.Equal(t, "VALIDATION: open session: bad id", err.Error())
}

func TestNewHistoryBoundaryError(t *testing.T) {
	sentinel := errors.New("nothing to undo")
	err := NewHistoryBoundaryError(CodeNothingToUndo, sentinel)

	assert.Equal(t, http.StatusConflict, HTTPStatus(err))
	assert.Equal(t, CodeNothingToUndo, err.Code)
	assert.Equal(t, "nothing to undo", err.Message)
	assert.ErrorIs(t, err, sentinel)
}

func TestStackTrace_StartsAtCaller(t *testing.T) {
	err := NewInternalError("boom")
	first := strings.SplitN(err.StackTrace, "\n", 2)[0]
	assert.Contains(t, first, "TestStackTrace_StartsAtCaller")
}
