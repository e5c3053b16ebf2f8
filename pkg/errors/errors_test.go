package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    *StandardError
		status int
	}{
		{NewValidationError("bad input", "quantity"), http.StatusBadRequest},
		{NewInvalidTransition("COMPLETED", "PENDING"), http.StatusBadRequest},
		{NewInsufficientStock(1, 3), http.StatusBadRequest},
		{NewForbidden("wrong courier"), http.StatusForbidden},
		{NewNotFound("transfer", "abc"), http.StatusNotFound},
		{NewAlreadyClaimed("abc"), http.StatusConflict},
		{NewInventoryUpdateFailed("decrement", errors.New("boom")), http.StatusInternalServerError},
		{NewDatabaseError("insert", errors.New("boom")), http.StatusInternalServerError},
		{NewInternalError("oops", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
		})
	}
}

func TestFromError(t *testing.T) {
	std := NewNotFound("transfer", "abc")
	assert.Same(t, std, FromError(std))

	wrapped := fmt.Errorf("loading transfer: %w", std)
	assert.Same(t, std, FromError(wrapped))

	plain := errors.New("disk on fire")
	normalized := FromError(plain)
	assert.Equal(t, "InternalError", normalized.Code)
	assert.Equal(t, "disk on fire", normalized.Details)
}

func TestHasCode(t *testing.T) {
	err := NewAlreadyClaimed("abc")
	assert.True(t, HasCode(err, "AlreadyClaimed"))
	assert.False(t, HasCode(err, "NotFound"))
	assert.True(t, HasCode(fmt.Errorf("claiming: %w", err), "AlreadyClaimed"))
	assert.False(t, HasCode(errors.New("plain"), "AlreadyClaimed"))
}
