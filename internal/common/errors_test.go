package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid input", NewAppError("X", "bad", ErrInvalidInput), http.StatusBadRequest},
		{"validation", NewValidator().Add("f", 1, "nope").Error(), http.StatusBadRequest},
		{"not found", fmt.Errorf("wrap: %w", ErrNotFound), http.StatusNotFound},
		{"parse failure", ParseFailuref("line %d", 3), http.StatusUnprocessableEntity},
		{"indeterminate", ErrComparisonIndeterminate, http.StatusConflict},
		{"mismatch", ErrTotalsMismatch, http.StatusConflict},
		{"external", ExternalFailure("LLM", errors.New("boom")), http.StatusBadGateway},
		{"database", NewAppError("DB_X", "down", ErrDatabase), http.StatusInternalServerError},
		{"unknown", errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestExternalFailure_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := ExternalFailure("SEARCH", cause)

	assert.ErrorIs(t, err, ErrExternalService)
	assert.ErrorIs(t, err, cause)
	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "EXTERNAL_SEARCH", appErr.Code)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ctx"))
	assert.ErrorIs(t, WrapError(ErrNotFound, "load"), ErrNotFound)
}
