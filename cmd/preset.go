package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/playsync/internal/formatter"
	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/repositories"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// PresetList prints a user's presets, marking the current one.
func (r *Runner) PresetList(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.Int64("user")

	return r.withEngine(ctx, cmd, func(_ *migrate.Engine, db *sql.DB) error {
		user, err := repositories.NewUserRepository(db).Get(ctx, userID)
		if err != nil {
			return err
		}

		presets, err := repositories.NewPresetRepository(db).List(ctx, userID)
		if err != nil {
			return err
		}
		return formatter.Write(r.output, formatter.PresetsToText(presets, user.CurrentPresetID))
	})
}

// PresetShow renders one preset with its playlists.
func (r *Runner) PresetShow(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if format == formatter.FormatCSV {
		return fmt.Errorf("%w: presets cannot be rendered as csv", shared.ErrInvalidFlag)
	}
	presetID := cmd.Int64("id")

	return r.withEngine(ctx, cmd, func(_ *migrate.Engine, db *sql.DB) error {
		preset, err := repositories.NewPresetRepository(db).Get(ctx, presetID)
		if err != nil {
			return err
		}

		playlists, err := repositories.NewPlaylistRepository(db).List(ctx, repositories.ListFilter{
			PresetID:        preset.ID,
			IncludeDisabled: cmd.Bool("all"),
		})
		if err != nil {
			return err
		}

		render := formatter.PresetToText
		if format == formatter.FormatMarkdown {
			render = formatter.PresetToMarkdown
		}
		data, err := render(preset, playlists)
		if err != nil {
			return fmt.Errorf("failed to render preset: %w", err)
		}
		return formatter.WriteFile(r.output, cmd.String("output"), data)
	})
}
