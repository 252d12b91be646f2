// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/krishimitra/krishi-auth/internal/clock"
	"codeberg.org/krishimitra/krishi-auth/internal/i18n"
	"github.com/labstack/echo/v4"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// HealthCheck reports whether a backing store is reachable.
type HealthCheck func(ctx context.Context) error

// Handlers contains the service-level HTTP handlers.
type Handlers struct {
	checks map[string]HealthCheck
	clock  clock.Clocker
}

// New creates a new Handlers instance. checks are keyed by the name reported
// in the health response.
func New(checks map[string]HealthCheck, clk clock.Clocker) *Handlers {
	if clk == nil {
		clk = clock.New()
	}
	return &Handlers{checks: checks, clock: clk}
}

// Health returns the health status of the service and its stores.
func (h *Handlers) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	resp := map[string]string{"status": "OK"}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			slog.WarnContext(ctx, "health_check_failed", "check", name, "error", err)
			resp[name] = "disconnected"
			resp["status"] = "ERROR"
			status = http.StatusServiceUnavailable
			continue
		}
		resp[name] = "connected"
	}

	return c.JSON(status, resp)
}

// Root describes the running API.
func (h *Handlers) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"message":   i18n.T(c.Request().Context(), "api_running"),
		"version":   Version,
		"timestamp": h.clock.Now().Format(time.RFC3339),
	})
}
