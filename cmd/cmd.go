// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func formatFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   usage,
		Value:   "text",
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write to this file instead of stdout",
	}
}

// setupCommand creates the config file and brings the store up to date.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, initialize the database and run migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// migrateCommand handles schema migrations
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Apply, revert and inspect schema migrations",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply every pending migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.MigrateUp,
			},
			{
				Name:   "down",
				Usage:  "Revert the most recently applied migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.MigrateDown,
			},
			{
				Name:  "to",
				Usage: "Apply or revert until the given migration is the latest applied (0 reverts everything)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.MigrateTo,
			},
			{
				Name:   "plan",
				Usage:  "List pending migrations in the order they would run",
				Flags:  []cli.Flag{configFlag()},
				Action: r.MigratePlan,
			},
			{
				Name:  "status",
				Usage: "Show every migration and whether it is applied",
				Flags: []cli.Flag{
					configFlag(),
					formatFlag("Output format: text, md or csv"),
					outputFlag(),
				},
				Action: r.MigrateStatus,
			},
			{
				Name:   "verify",
				Usage:  "Compare the live schema against the current model",
				Flags:  []cli.Flag{configFlag()},
				Action: r.MigrateVerify,
			},
		},
	}
}

// presetCommand handles read-only preset inspection
func presetCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "preset",
		Usage: "Inspect stored presets",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List a user's presets",
				Flags: []cli.Flag{
					configFlag(),
					&cli.Int64Flag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User ID",
						Required: true,
					},
				},
				Action: r.PresetList,
			},
			{
				Name:  "show",
				Usage: "Show a preset with its playlists",
				Flags: []cli.Flag{
					configFlag(),
					&cli.Int64Flag{
						Name:     "id",
						Usage:    "Preset ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Include disabled playlists",
					},
					formatFlag("Output format: text or md"),
					outputFlag(),
				},
				Action: r.PresetShow,
			},
		},
	}
}
