// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/krishimitra/krishi-auth/internal/config"
	"codeberg.org/krishimitra/krishi-auth/internal/handlers"
	"codeberg.org/krishimitra/krishi-auth/internal/i18n"
	"codeberg.org/krishimitra/krishi-auth/internal/validate"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	SetupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"environment", cfg.Environment,
		"store", cfg.OTP.Store,
	)

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			slog.Error("failed to close stores", "error", closeErr)
		}
	}()

	if cfg.IsDevelopment() {
		slog.Warn("development mode: issued codes are returned in send-otp responses")
	}

	e := NewEcho(app)

	return startWithGracefulShutdown(ctx, e, app)
}

// NewEcho builds the HTTP server for app.
func NewEcho(app *App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	setupMiddleware(e, app.Config)
	setupRoutes(e, app)

	return e
}

func setupRoutes(e *echo.Echo, app *App) {
	h := handlers.New(app.HealthChecks(), nil)
	auth := handlers.NewAuth(app.Login, app.Tokens, app.OTP.TTL(), app.Config.IsDevelopment())

	e.GET("/", h.Root)
	e.GET("/health", h.Health)

	users := e.Group("/api/users")
	users.POST("/send-otp", auth.SendOTP)
	users.POST("/verify-otp", auth.VerifyOTP)
	users.GET("/me", auth.Me, auth.RequireToken)
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, app *App) error {
	cfg := app.Config

	// Channel for server errors
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go runSweeper(sweepCtx, app.OTP, cfg.OTP.SweepInterval, cfg.OTP.Retention)

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("shutting down server", "reason", ctx.Err())
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	stopSweeper()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
