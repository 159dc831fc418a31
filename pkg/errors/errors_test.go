package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConstructors tests codes and statuses of the standard errors
func TestConstructors(t *testing.T) {
	tests := []struct {
		name         string
		err          *AppError
		expectCode   string
		expectStatus int
	}{
		{name: "Validation", err: ErrValidation("bad"), expectCode: CodeValidationError, expectStatus: http.StatusBadRequest},
		{name: "Not found", err: ErrNotFoundWithID("product", "SKU-1"), expectCode: CodeNotFound, expectStatus: http.StatusNotFound},
		{name: "Conflict", err: ErrConflict("busy"), expectCode: CodeConflict, expectStatus: http.StatusConflict},
		{name: "Insufficient stock", err: ErrInsufficientStock("SKU-1", 10, 3), expectCode: CodeInsufficientStock, expectStatus: http.StatusConflict},
		{name: "Invalid configuration", err: ErrInvalidConfiguration("weights"), expectCode: CodeInvalidConfiguration, expectStatus: http.StatusBadRequest},
		{name: "Unavailable", err: ErrServiceUnavailable("rate quote"), expectCode: CodeServiceUnavailable, expectStatus: http.StatusServiceUnavailable},
		{name: "Timeout", err: ErrTimeout("lock"), expectCode: CodeTimeout, expectStatus: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectCode, tt.err.Code)
			assert.Equal(t, tt.expectStatus, tt.err.HTTPStatus)
		})
	}

	stock := ErrInsufficientStock("SKU-1", 10, 3)
	assert.Equal(t, map[string]string{"sku": "SKU-1", "attempted": "10", "available": "3"}, stock.Details)
}

// TestFromError tests wrapping and unwrapping
func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	cause := errors.New("socket closed")
	internal := FromError(cause)
	assert.Equal(t, CodeInternalError, internal.Code)
	assert.ErrorIs(t, internal, cause)

	wrapped := fmt.Errorf("handler: %w", ErrNotFound("warehouse"))
	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, appErr.Code)
	assert.Same(t, appErr, FromError(wrapped))
	assert.False(t, IsAppError(cause))
}
