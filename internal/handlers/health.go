package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memohai/sticker-export-bot/internal/version"
)

const checkTimeout = 5 * time.Second

// Check probes one dependency; nil means healthy.
type Check func(ctx context.Context) error

// HealthHandler serves /ping for liveness and /health for readiness.
type HealthHandler struct {
	logger *slog.Logger
	checks map[string]Check
}

// NewHealthHandler creates a health handler running checks on /health.
func NewHealthHandler(log *slog.Logger, checks map[string]Check) *HealthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &HealthHandler{
		logger: log.With(slog.String("handler", "health")),
		checks: checks,
	}
}

// Register mounts GET /ping, GET /health and HEAD /health on the Echo instance.
func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.GET("/health", h.Health)
	e.HEAD("/health", h.Health)
}

// Ping returns 200 JSON {"status":"ok","version":...}.
func (h *HealthHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GetInfo(),
	})
}

// Health runs every check and returns 503 with the first failure.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
			if c.Request().Method == http.MethodHead {
				return c.NoContent(http.StatusServiceUnavailable)
			}
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: name + ": " + err.Error()})
		}
	}
	if c.Request().Method == http.MethodHead {
		return c.NoContent(http.StatusOK)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
