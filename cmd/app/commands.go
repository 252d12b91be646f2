// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"codeberg.org/krishimitra/krishi-auth/internal/config"
	"codeberg.org/krishimitra/krishi-auth/internal/database"
	"codeberg.org/krishimitra/krishi-auth/internal/importer"
	"codeberg.org/krishimitra/krishi-auth/internal/otp"
	"codeberg.org/krishimitra/krishi-auth/internal/repository"
	"codeberg.org/krishimitra/krishi-auth/internal/server"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// withDB loads the configuration, sets up logging and runs fn against a
// connection that is closed afterwards. Migrations are not applied.
func withDB(cmd *cli.Command, fn func(cfg *config.Config, db *sqlx.DB) error) error {
	cfg := config.NewFromCLI(cmd)
	server.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Connect(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	return fn(cfg, db)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: func(_ context.Context, cmd *cli.Command) error {
					return withDB(cmd, func(_ *config.Config, db *sqlx.DB) error {
						if err := database.RunMigrations(db.DB); err != nil {
							return err
						}
						return logVersion(db)
					})
				},
			},
			{
				Name:  "down",
				Usage: "Roll back the last migration",
				Action: func(_ context.Context, cmd *cli.Command) error {
					return withDB(cmd, func(_ *config.Config, db *sqlx.DB) error {
						if err := database.MigrateDown(db.DB); err != nil {
							return err
						}
						return logVersion(db)
					})
				},
			},
			{
				Name:  "status",
				Usage: "Show the state of every migration",
				Action: func(_ context.Context, cmd *cli.Command) error {
					return withDB(cmd, func(_ *config.Config, db *sqlx.DB) error {
						return database.MigrateStatus(db.DB)
					})
				},
			},
		},
	}
}

func logVersion(db *sqlx.DB) error {
	version, err := database.Version(db.DB)
	if err != nil {
		return err
	}
	slog.Info("schema version", "version", version)
	return nil
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Delete OTP records that expired longer ago than the retention",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withDB(cmd, func(cfg *config.Config, db *sqlx.DB) error {
				if cfg.OTP.Store == config.StoreRedis {
					slog.Info("redis expires OTP keys on its own, nothing to sweep")
					return nil
				}
				if err := database.RunMigrations(db.DB); err != nil {
					return err
				}

				m := otp.NewManager(repository.New(db))
				n, err := m.Sweep(ctx, cfg.OTP.Retention)
				if err != nil {
					return err
				}
				slog.Info("otp sweep finished", "deleted", n, "retention", cfg.OTP.Retention)
				return nil
			})
		},
	}
}

func importSubjectsCommand() *cli.Command {
	return &cli.Command{
		Name:      "import-subjects",
		Usage:     "Load registered farmers from a CSV export",
		ArgsUsage: "<file.csv>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("missing CSV file argument")
			}

			return withDB(cmd, func(_ *config.Config, db *sqlx.DB) error {
				if err := database.RunMigrations(db.DB); err != nil {
					return err
				}

				f, err := os.Open(path) //nolint:gosec // path comes from the operator
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()

				res, err := importer.Import(ctx, repository.New(db), f)
				if res != nil {
					for _, skipped := range res.Skipped {
						slog.Warn("row skipped", "line", skipped.Line, "reason", skipped.Reason)
					}
					slog.Info("import finished", "imported", res.Imported, "skipped", len(res.Skipped))
				}
				return err
			})
		},
	}
}
