package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes a config file from the embedded template when none exists, then migrates the store.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if r.config == nil {
		if _, err := os.Stat(configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			} else {
				r.logger.Info("config file created", "path", configPath)
			}
		}
	}

	return r.withEngine(ctx, cmd, func(engine *migrate.Engine, _ *sql.DB) error {
		r.logger.Info("initializing database", "path", r.config.Database.Path)
		if err := engine.Init(ctx); err != nil {
			return err
		}

		r.logger.Info("running database migrations")
		applied, err := engine.Up(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
		return r.writeMigrations("Applied", applied)
	})
}
