package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "booking not found"},
			expected: "NOT_FOUND: booking not found",
		},
		{
			name:     "with underlying error",
			appErr:   &AppError{Code: CodeStoreUnavailable, Message: "down", Err: errors.New("i/o timeout")},
			expected: "STORE_UNAVAILABLE: down (caused by: i/o timeout)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("confirm: %w", InvalidTransition("CANCELLED", "confirm"))

	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrForbidden))
}

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Forbidden("nope"))
	got := AsAppError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, CodeForbidden, got.Code)
	assert.Equal(t, http.StatusForbidden, got.StatusCode())

	plain := AsAppError(errors.New("boom"))
	assert.Equal(t, CodeInternal, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.StatusCode())
}

func TestStoreUnavailable_Unwraps(t *testing.T) {
	cause := errors.New("deadlock")
	err := StoreUnavailable(cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, err.StatusCode())
}

func TestIsAuth(t *testing.T) {
	assert.True(t, IsAuth(AuthExpired()))
	assert.True(t, IsAuth(AuthMalformed(nil)))
	assert.True(t, IsAuth(AuthRevoked()))
	assert.False(t, IsAuth(Forbidden("x")))
}
