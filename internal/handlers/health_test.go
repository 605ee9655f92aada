package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/sticker-export-bot/internal/metrics"
)

func serve(t *testing.T, e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestPing(t *testing.T) {
	e := echo.New()
	NewHealthHandler(nil, nil).Register(e)

	rec := serve(t, e, http.MethodGet, "/ping")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestHealthChecks(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	broken := func(context.Context) error { return errors.New("executable file not found") }

	e := echo.New()
	NewHealthHandler(nil, map[string]Check{"state": healthy}).Register(e)
	assert.Equal(t, http.StatusOK, serve(t, e, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusOK, serve(t, e, http.MethodHead, "/health").Code)

	e = echo.New()
	NewHealthHandler(nil, map[string]Check{"state": healthy, "ffmpeg": broken}).Register(e)
	rec := serve(t, e, http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ffmpeg: executable file not found", body.Message)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, e, http.MethodHead, "/health").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.ObserveAdmission(true)

	e := echo.New()
	NewMetricsHandler().Register(e)

	rec := serve(t, e, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "sticker_admissions_total"), rec.Body.String())
}
