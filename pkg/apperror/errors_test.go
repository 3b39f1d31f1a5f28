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
	e := New("BAL_001", "Insufficient balance", http.StatusPaymentRequired)
	assert.Equal(t, "[BAL_001] Insufficient balance", e.Error())

	wrapped := Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, errors.New("dial tcp: refused"))
	assert.Contains(t, wrapped.Error(), "dial tcp: refused")
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("row lock timeout")
	e := TransientError(fmt.Errorf("confirm submission: %w", inner))
	assert.True(t, errors.Is(e, inner))
}

func TestErrInsufficientInventory_NamesBalance(t *testing.T) {
	e := ErrInsufficientInventory(40)
	assert.Equal(t, "BAL_002", e.Code)
	assert.Contains(t, e.Message, "40")
	assert.Equal(t, http.StatusPaymentRequired, e.HTTPStatus)
}

func TestErrHierarchyViolation(t *testing.T) {
	e := ErrHierarchyViolation("ORGANIZER", "SELLER")
	assert.Equal(t, "HIER_001", e.Code)
	assert.Contains(t, e.Message, "ORGANIZER")
	assert.Contains(t, e.Message, "SELLER")
}

func TestTaxonomyHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
	}{
		{"invalid state", ErrInvalidState("CANCELLED"), http.StatusConflict},
		{"already claimed", ErrAlreadyClaimed(), http.StatusConflict},
		{"not claimed by you", ErrNotClaimedByYou(), http.StatusForbidden},
		{"already confirmed", ErrAlreadyConfirmed(), http.StatusConflict},
		{"invalid second factor", ErrInvalidSecondFactor(), http.StatusForbidden},
		{"forbidden", ErrForbidden("refund requires the primary operator"), http.StatusForbidden},
		{"not found", ErrNotFound("point card"), http.StatusNotFound},
		{"transient", TransientError(errors.New("x")), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
}

func TestErrorsAs(t *testing.T) {
	var err error = ErrAlreadyClaimed()
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "RECON_001", appErr.Code)
}
