package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/chamados-service/internal/observability"
	apperrors "github.com/spec-kit/chamados-service/pkg/util/errorutil"
)

func newMiddlewareApp(metrics *observability.Metrics) *fiber.App {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return apperrors.NewAlreadyClaimed(map[string]any{"ticket_id": 3})
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("unexpected")
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		return errors.New("db down")
	})
	return app
}

func TestErrorMiddlewareRendersDomainErrors(t *testing.T) {
	metrics := observability.NewMetrics()
	app := newMiddlewareApp(metrics)

	resp, err := app.Test(httptest.NewRequest("GET", "/conflict", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "ALREADY_CLAIMED", body.Error.Code)
	assert.EqualValues(t, 3, body.Error.Details["ticket_id"])
	assert.Equal(t, int64(1), metrics.Snapshot().Errors["/conflict|GET|ALREADY_CLAIMED"])
}

func TestErrorMiddlewareRecoversPanics(t *testing.T) {
	app := newMiddlewareApp(nil)

	for _, path := range []string{"/boom", "/plain"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestRequestIDIsPropagatedOrAssigned(t *testing.T) {
	app := newMiddlewareApp(nil)

	req := httptest.NewRequest("GET", "/conflict", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(requestIDHeader))

	resp, err = app.Test(httptest.NewRequest("GET", "/conflict", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Len(t, resp.Header.Get(requestIDHeader), 36)
}
