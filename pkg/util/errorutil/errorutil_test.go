package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorNilStaysNil(t *testing.T) {
	// A typed-nil *DomainError inside a non-nil error interface would make
	// every caller's err != nil check fire on success paths.
	err := MapError(nil)
	assert.True(t, err == nil, "MapError(nil) must be a true nil interface, got %T", err)
}

func TestMapErrorClassification(t *testing.T) {
	t.Run("domain errors pass through", func(t *testing.T) {
		original := NewConflict("ticket already assigned", nil)
		mapped := MapError(fmt.Errorf("assign: %w", original))

		var domainErr *DomainError
		require.ErrorAs(t, mapped, &domainErr)
		assert.Equal(t, "CONFLICT", domainErr.Code)
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		mapped := MapError(sql.ErrNoRows)

		var domainErr *DomainError
		require.ErrorAs(t, mapped, &domainErr)
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
		assert.Equal(t, http.StatusNotFound, domainErr.HTTPStatus)
	})

	t.Run("unknown errors become internal", func(t *testing.T) {
		cause := errors.New("connection reset")
		mapped := MapError(cause)

		var domainErr *DomainError
		require.ErrorAs(t, mapped, &domainErr)
		assert.Equal(t, "INTERNAL_ERROR", domainErr.Code)
		assert.ErrorIs(t, mapped, cause)
	})
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(NewConflict("lost the race", nil)))
	assert.False(t, IsConflict(NewValidationError("title is required", nil)))
	assert.False(t, IsConflict(nil))
}
