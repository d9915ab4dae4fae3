package errutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseErrorWrapping(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("handler: %w", BadRequest("invalid interval", cause, WithField("intervalMs", "must be >= 1000")))

	var be BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, StatusBadRequest, be.Status())
	require.Equal(t, http.StatusBadRequest, be.Code.HTTPStatus())
	require.ErrorIs(t, err, cause)
	require.Len(t, be.Details, 1)
	require.Equal(t, "intervalMs", be.Details[0].Field)
}

func TestFromError(t *testing.T) {
	require.Equal(t, StatusInternal, FromError(errors.New("x")).Code)
	require.Equal(t, StatusTimeout, FromError(context.DeadlineExceeded).Code)
	require.Equal(t, StatusNotFound, FromError(NotFound("missing", nil)).Code)
	require.Equal(t, http.StatusInternalServerError, StatusUnknown.HTTPStatus())
}
