package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/desertthunder/playsync/internal/formatter"
	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/urfave/cli/v3"
)

var errSchemaDrift = errors.New("schema drift detected")

// MigrateUp applies every pending migration.
func (r *Runner) MigrateUp(ctx context.Context, cmd *cli.Command) error {
	return r.withEngine(ctx, cmd, func(engine *migrate.Engine, _ *sql.DB) error {
		applied, err := engine.Up(ctx)
		if werr := r.writeMigrations("Applied", applied); werr != nil && err == nil {
			err = werr
		}
		return err
	})
}

// MigrateDown reverts the latest migration.
func (r *Runner) MigrateDown(ctx context.Context, cmd *cli.Command) error {
	return r.withEngine(ctx, cmd, func(engine *migrate.Engine, _ *sql.DB) error {
		reverted, err := engine.Down(ctx)
		if err != nil {
			return err
		}
		if reverted == nil {
			return r.writePlain("Nothing to do\n")
		}
		if reverted.Lossy != "" {
			r.logger.Warn("reverted a lossy migration", "migration", reverted.Key(), "lost", reverted.Lossy)
		}
		return r.writePlain("Reverted %s\n", reverted.Key())
	})
}

// MigrateTo moves the store to the migration named by the id argument.
func (r *Runner) MigrateTo(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.StringArg("id")
	if arg == "" {
		return fmt.Errorf("%w: migration id", shared.ErrMissingArgument)
	}
	target, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a migration id", shared.ErrInvalidArgument, arg)
	}

	return r.withEngine(ctx, cmd, func(engine *migrate.Engine, _ *sql.DB) error {
		before, err := engine.Status(ctx)
		if err != nil {
			return err
		}

		moved, err := engine.To(ctx, target)
		verb := "Applied"
		if target < before.Current {
			verb = "Reverted"
		}
		if werr := r.writeMigrations(verb, moved); werr != nil && err == nil {
			err = werr
		}
		return err
	})
}

// MigratePlan lists pending migrations without running them.
func (r *Runner) MigratePlan(ctx context.Context, cmd *cli.Command) error {
	return r.withEngine(ctx, cmd, func(engine *migrate.Engine, _ *sql.DB) error {
		pending, err := engine.Plan(ctx)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return r.writePlain("Up to date\n")
		}
		for _, m := range pending {
			if err := r.writePlain("%s\n", m.Key()); err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrateStatus renders the full history with each migration's state.
func (r *Runner) MigrateStatus(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	return r.withEngine(ctx, cmd, func(engine *migrate.Engine, _ *sql.DB) error {
		status, err := engine.Status(ctx)
		if err != nil {
			return err
		}

		data, err := formatter.RenderStatus(status, format)
		if err != nil {
			return fmt.Errorf("failed to render status: %w", err)
		}
		return formatter.WriteFile(r.output, cmd.String("output"), data)
	})
}

// MigrateVerify fails when the live schema differs from [models.CurrentSchema].
func (r *Runner) MigrateVerify(ctx context.Context, cmd *cli.Command) error {
	return r.withEngine(ctx, cmd, func(engine *migrate.Engine, db *sql.DB) error {
		pending, err := engine.Plan(ctx)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			r.logger.Warn("store is behind the migration history", "pending", len(pending))
		}

		live, err := migrate.Inspect(ctx, db)
		if err != nil {
			return err
		}

		drift := migrate.Diff(models.CurrentSchema(), live)
		if err := formatter.Write(r.output, formatter.DriftToText(drift)); err != nil {
			return err
		}
		if len(drift) > 0 {
			return fmt.Errorf("%w: %d difference(s)", errSchemaDrift, len(drift))
		}
		return nil
	})
}
