package errors

import (
	"net/http"
	"testing"

	"parkshare/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseError_WrapMessageKeepsAppError(t *testing.T) {
	err := ErrAlreadyOccupied.WrapMessage("parking 42")

	var appErr AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPCode())
	assert.Equal(t, "ALREADY_OCCUPIED", appErr.ErrorCode())
	assert.True(t, errors.Is(err, ErrAlreadyOccupied))
	assert.False(t, errors.Is(err, ErrSelfReservation))
}

func TestBaseError_WithDetailsStillMatches(t *testing.T) {
	err := ErrNotFound.WithDetails("parking")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "parking", err.Details())
}

func TestValidationError(t *testing.T) {
	err := NewValidationError(map[string]string{
		"password": "must contain a digit",
		"email":    "must be a valid email",
	})

	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Equal(t, "invalid input data. email: must be a valid email. password: must contain a digit", err.Error())

	var fe FieldErrors
	require.True(t, errors.As(errors.Wrap(err, "signup"), &fe))
	assert.Len(t, fe.Fields(), 2)
}

func TestDuplicateKeyError(t *testing.T) {
	err := NewDuplicateKeyError("email")

	assert.Equal(t, http.StatusBadRequest, err.HTTPCode())
	assert.Equal(t, "email", err.Field())
	assert.Contains(t, err.Message(), "email")
}

func TestTaxonomyStatusCodes(t *testing.T) {
	tests := []struct {
		err  AppError
		code int
	}{
		{ErrIncorrectCredentials, http.StatusUnauthorized},
		{ErrInvalidPin, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrParkingNotFound, http.StatusNotFound},
		{ErrConfirmationLinkInvalid, http.StatusNotFound},
		{ErrSelfReservation, http.StatusBadRequest},
		{ErrResetTokenInvalid, http.StatusBadRequest},
		{ErrConfirmationTimeout, http.StatusRequestTimeout},
		{ErrNotificationDelivery, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.ErrorCode(), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.HTTPCode())
		})
	}
}
