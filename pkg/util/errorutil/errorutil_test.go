package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/chamados-service/internal/domain"
)

func TestLifecycleErrorsWrapSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
		code     string
		status   int
	}{
		{NewNotFound("ticket", nil), domain.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
		{NewInvalidState(nil), domain.ErrInvalidState, "INVALID_STATE", http.StatusConflict},
		{NewAlreadyClaimed(nil), domain.ErrAlreadyClaimed, "ALREADY_CLAIMED", http.StatusConflict},
		{NewNotOwner(nil), domain.ErrNotOwner, "NOT_OWNER", http.StatusForbidden},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, tc.err, tc.sentinel)
		domainErr := ToDomainError(tc.err)
		assert.Equal(t, tc.code, domainErr.Code)
		assert.Equal(t, tc.status, domainErr.HTTPStatus)
	}
}

func TestToDomainErrorUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("claim: %w", NewAlreadyClaimed(map[string]any{"ticket_id": int64(3)}))
	domainErr := ToDomainError(wrapped)
	assert.Equal(t, "ALREADY_CLAIMED", domainErr.Code)
	assert.Equal(t, int64(3), domainErr.Details["ticket_id"])
}

func TestToDomainErrorMapsStoreErrors(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", ToDomainError(domain.ErrNotFound).Code)
	assert.Equal(t, "NOT_FOUND", ToDomainError(pgx.ErrNoRows).Code)

	internal := ToDomainError(errors.New("connection reset"))
	assert.Equal(t, "INTERNAL_ERROR", internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
}

func TestToDomainErrorMapsFiberErrors(t *testing.T) {
	domainErr := ToDomainError(fiber.ErrMethodNotAllowed)
	assert.Equal(t, "METHOD_NOT_ALLOWED", domainErr.Code)
	assert.Equal(t, http.StatusMethodNotAllowed, domainErr.HTTPStatus)

	domainErr = ToDomainError(fiber.NewError(http.StatusNotFound, "Cannot GET /nope"))
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}
