package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorString(t *testing.T) {
	err := NotFound("order", "o-1")
	assert.Contains(t, err.Error(), "NOT_FOUND")
	assert.Contains(t, err.Error(), "order with id o-1 not found")
}

func TestAppError_UnwrapsToSentinel(t *testing.T) {
	assert.ErrorIs(t, NotFound("order", "o-1"), ErrNotFound)
	assert.ErrorIs(t, InvalidInput("bad"), ErrInvalidInput)
	assert.ErrorIs(t, Unauthorized("nope"), ErrUnauthorized)
	assert.ErrorIs(t, RateLimited("slow down"), ErrRateLimited)
	assert.ErrorIs(t, ServiceUnavailable("down"), ErrServiceUnavail)
}

func TestHTTPStatus_AppError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("order", "o-1")))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(RateLimited("x")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ServiceUnavailable("x")))
}

func TestHTTPStatus_WrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(wrapped))
}

func TestHTTPStatus_UnknownErrorIs500(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestWrap_PreservesChain(t *testing.T) {
	err := Wrap(ErrNotFound, "load snapshot")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "load snapshot")
}
