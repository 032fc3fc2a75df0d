package errutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, StatusBadRequest.HTTPStatus())
	require.Equal(t, http.StatusBadRequest, StatusValidationFailed.HTTPStatus())
	require.Equal(t, http.StatusUnprocessableEntity, StatusUnprocessableEntity.HTTPStatus())
	require.Equal(t, http.StatusConflict, StatusConflict.HTTPStatus())
	require.Equal(t, http.StatusNotFound, StatusNotFound.HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, StatusInternal.HTTPStatus())
}

func TestSentinelMatchingWithErrorsIs(t *testing.T) {
	sentinel := Conflict("withdrawal request already resolved", nil)

	returned := Conflict("withdrawal request already resolved", nil)
	require.ErrorIs(t, returned, sentinel)

	other := Conflict("invalid application transition", nil)
	require.NotErrorIs(t, other, sentinel)
}

func TestWrappedErrorsUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("storage failure", cause, WithErr(cause))

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "storage failure")

	wrapped := fmt.Errorf("handling request: %w", err)
	var be BaseError
	require.ErrorAs(t, wrapped, &be)
	require.Equal(t, StatusInternal, be.Code)
}
