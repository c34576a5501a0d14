package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/GoPolymarket/tradevault/internal/chain"
	"github.com/GoPolymarket/tradevault/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromVault(t *testing.T) {
	tests := []struct {
		err    error
		kind   ErrorType
		status int
	}{
		{vault.ErrUnauthorized, ErrUnauthorized, http.StatusForbidden},
		{vault.ErrReentrantCall, ErrReentrantCall, http.StatusConflict},
		{fmt.Errorf("%w: 101 > 100", vault.ErrInvalidPercent), ErrInvalidPercent, http.StatusBadRequest},
		{vault.ErrAssetNotAllowed, ErrAssetNotAllowed, http.StatusUnprocessableEntity},
		{vault.ErrProfitBelowThreshold, ErrProfitBelowThreshold, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %w", vault.ErrVenueCallFailed, errors.New("revert")), ErrVenueCallFailed, http.StatusBadGateway},
		{fmt.Errorf("%w: %w", vault.ErrTransferFailed, chain.ErrFeeAboveCeiling), ErrFeeCeiling, http.StatusUnprocessableEntity},
		{vault.ErrPersist, ErrInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			appErr := FromVault(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.kind, appErr.Type)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
			assert.ErrorIs(t, appErr, tt.err)
		})
	}
	assert.Nil(t, FromVault(errors.New("plain")))
	assert.Nil(t, FromVault(nil))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil))

	original := NewInvalidRequest("bad body")
	assert.Same(t, original, Wrap(fmt.Errorf("ctx: %w", original)))

	mapped := Wrap(vault.ErrNotRunning)
	assert.Equal(t, ErrNotRunning, mapped.Type)
	assert.Equal(t, "Start the vault first.", mapped.Suggestion)

	internal := Wrap(errors.New("boom"))
	assert.Equal(t, ErrInternal, internal.Type)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
}
