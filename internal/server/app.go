// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/krishimitra/krishi-auth/internal/clock"
	"codeberg.org/krishimitra/krishi-auth/internal/config"
	"codeberg.org/krishimitra/krishi-auth/internal/database"
	"codeberg.org/krishimitra/krishi-auth/internal/handlers"
	"codeberg.org/krishimitra/krishi-auth/internal/otp"
	"codeberg.org/krishimitra/krishi-auth/internal/redisstore"
	"codeberg.org/krishimitra/krishi-auth/internal/repository"
	"codeberg.org/krishimitra/krishi-auth/internal/services/delivery"
	"codeberg.org/krishimitra/krishi-auth/internal/services/login"
	"codeberg.org/krishimitra/krishi-auth/internal/services/token"
	"github.com/redis/go-redis/v9"
	"github.com/vinovest/sqlx"
)

// App holds the wired services shared by all commands.
type App struct {
	Config *config.Config
	DB     *sqlx.DB
	Repo   *repository.Repository
	Redis  *redis.Client
	OTP    *otp.Manager
	Tokens *token.Service
	Login  *login.Service
}

// NewApp opens the stores selected by cfg and wires the services on top.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Repo:   repository.New(db),
	}

	var store otp.Store = app.Repo
	if cfg.OTP.Store == config.StoreRedis {
		client, err := redisstore.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.Redis = client
		store = redisstore.New(client, cfg.OTP.Retention)
	}

	clk := clock.New()
	app.OTP = otp.NewManager(store, otp.WithClock(clk), otp.WithTTL(cfg.OTP.TTL))

	secret, err := tokenSecret(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Tokens, err = token.New(secret, cfg.Token.TTL, clk)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	app.Login = login.New(app.Repo, app.OTP, delivery.NewLogChannel(nil), app.Tokens)

	slog.Debug("app_ready", "store", cfg.OTP.Store, "otp_ttl", cfg.OTP.TTL)
	return app, nil
}

// HealthChecks returns a check per configured store.
func (a *App) HealthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error {
			return database.Ping(ctx, a.DB)
		},
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

// Close releases all store connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// tokenSecret returns the configured secret. In development an empty secret
// is replaced by a random one, so tokens do not survive a restart.
func tokenSecret(cfg *config.Config) ([]byte, error) {
	if cfg.Token.Secret != "" {
		return []byte(cfg.Token.Secret), nil
	}

	secret := make([]byte, token.MinSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}
	slog.Warn("token secret not set, using a random secret for this run")
	return secret, nil
}
