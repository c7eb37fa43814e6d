package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeAlreadyImported, http.StatusConflict},
		{CodeConflict, http.StatusConflict},
		{CodeInvalidState, http.StatusConflict},
		{CodeValidation, http.StatusBadRequest},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := NotFoundf("serie %s not found", "abc")
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrConflict))

	wrapped := fmt.Errorf("hard delete: %w", err)
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.Equal(t, "hard delete: serie abc not found", wrapped.Error())
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := New("connection refused")
	err := Wrapf(cause, CodeUnavailable, "load source %q", "mangadex")

	assert.Equal(t, `load source "mangadex": connection refused`, err.Error())
	assert.True(t, Is(err, cause))
	assert.True(t, Is(err, ErrUnavailable))
	assert.False(t, Is(err, ErrNotFound))
	assert.Equal(t, cause, Unwrap(err))
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
}

func TestValidationWithDetails(t *testing.T) {
	err := ValidationWithDetails("validation failed", []string{"url"})

	assert.True(t, Is(err, ErrValidation))
	assert.Equal(t, []string{"url"}, err.Details)
	assert.Nil(t, ErrValidation.Details)
}

func TestAlreadyImported(t *testing.T) {
	err := AlreadyImported("serie-1")

	var domainErr *Error
	require.True(t, As(err, &domainErr))
	assert.Equal(t, CodeAlreadyImported, domainErr.Code)
	assert.Equal(t, map[string]string{"serie_id": "serie-1"}, domainErr.Details)
	assert.Equal(t, http.StatusConflict, domainErr.HTTPStatus())
}
