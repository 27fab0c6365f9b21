package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/migrations"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sql.DB
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Config is loaded from ConfigPath (or the --config flag) when a command runs.
// A non-nil DB is used as is and never closed by the runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	DB         *sql.DB
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		db:         opts.DB,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, migrateCommand, presetCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves the configuration for a command. A missing file falls back to defaults.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	path := r.configPath
	if flag := cmd.String("config"); flag != "" {
		path = flag
	}

	config := shared.DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := shared.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}

	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))
	r.config = config
	return config, nil
}

// openDatabase returns the store and a function releasing it.
func (r *Runner) openDatabase(ctx context.Context, config *shared.Config) (*sql.DB, func(), error) {
	if r.db != nil {
		return r.db, func() {}, nil
	}

	db, err := shared.NewDatabaseFromConfig(ctx, config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, func() { db.Close() }, nil
}

func (r *Runner) newEngine(db *sql.DB, config *shared.Config) (*migrate.Engine, error) {
	registry, err := migrations.Registry()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	return migrate.New(db, registry,
		migrate.WithLogger(r.logger),
		migrate.WithLockTimeout(config.Migrations.LockTimeout.Duration),
		migrate.WithLockPollInterval(config.Migrations.LockPollInterval.Duration),
		migrate.WithStaleLockAfter(config.Migrations.StaleLockAfter.Duration),
	), nil
}

// withEngine loads the config, opens the store and hands an engine over it to fn.
func (r *Runner) withEngine(ctx context.Context, cmd *cli.Command, fn func(*migrate.Engine, *sql.DB) error) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, release, err := r.openDatabase(ctx, config)
	if err != nil {
		return err
	}
	defer release()

	engine, err := r.newEngine(db, config)
	if err != nil {
		return err
	}
	return fn(engine, db)
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeMigrations(verb string, applied []migrate.Migration) error {
	if len(applied) == 0 {
		return r.writePlain("Nothing to do\n")
	}
	for _, m := range applied {
		if err := r.writePlain("%s %s\n", verb, m.Key()); err != nil {
			return err
		}
	}
	return nil
}
