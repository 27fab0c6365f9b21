package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/repositories"
	"github.com/desertthunder/playsync/internal/shared"
	tu "github.com/desertthunder/playsync/internal/testing"
	"github.com/urfave/cli/v3"
)

func newTestRunner(t *testing.T, db *sql.DB) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: shared.DefaultConfig(),
		DB:     db,
		Logger: shared.NewDiscardLogger(),
		Output: output,
	})
	return runner, output
}

func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "playsync", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"playsync"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			db := tu.NewDatabase(t)

			runner := NewRunner(RunnerOpts{
				Config: config,
				DB:     db,
				Logger: logger,
				Output: output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.db != db {
				t.Error("expected db to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("writeMigrations stops at first failure", func(t *testing.T) {
			limited := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limited})

			err := runner.writeMigrations("Applied", []migrate.Migration{
				{ID: 20240101000000, Name: "First"},
				{ID: 20240102000000, Name: "Second"},
			})
			if err == nil {
				t.Fatal("expected error on second write")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := make([]string, 0, len(commands))
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names = append(names, cmd.Name)
		}
		if strings.Join(names, ",") != "setup,migrate,preset" {
			t.Errorf("unexpected commands %v", names)
		}
	})
}

func TestMigrateCommands(t *testing.T) {
	t.Run("plan then up", func(t *testing.T) {
		runner, output := newTestRunner(t, tu.NewDatabase(t))

		if err := run(t, runner, "migrate", "plan"); err != nil {
			t.Fatalf("plan failed: %v", err)
		}
		if lines := strings.Split(strings.TrimSpace(output.String()), "\n"); len(lines) != 12 {
			t.Errorf("expected 12 pending migrations, got %d: %s", len(lines), output)
		}
		if !strings.HasPrefix(output.String(), "20220501120000_InitialCreate\n") {
			t.Errorf("expected plan to start with the initial migration, got %s", output)
		}

		output.Reset()
		if err := run(t, runner, "migrate", "up"); err != nil {
			t.Fatalf("up failed: %v", err)
		}
		if !strings.Contains(output.String(), "Applied 20231001090000_PlaylistTypeGuard") {
			t.Errorf("expected last migration to be applied, got %s", output)
		}

		output.Reset()
		if err := run(t, runner, "migrate", "up"); err != nil {
			t.Fatalf("second up failed: %v", err)
		}
		if output.String() != "Nothing to do\n" {
			t.Errorf("expected no-op, got %q", output.String())
		}

		output.Reset()
		if err := run(t, runner, "migrate", "plan"); err != nil {
			t.Fatalf("plan failed: %v", err)
		}
		if output.String() != "Up to date\n" {
			t.Errorf("expected empty plan, got %q", output.String())
		}
	})

	t.Run("down and to", func(t *testing.T) {
		runner, output := newTestRunner(t, tu.NewMigratedDatabase(t))

		if err := run(t, runner, "migrate", "down"); err != nil {
			t.Fatalf("down failed: %v", err)
		}
		if output.String() != "Reverted 20231001090000_PlaylistTypeGuard\n" {
			t.Errorf("unexpected output %q", output.String())
		}

		output.Reset()
		if err := run(t, runner, "migrate", "to", "20230610144840"); err != nil {
			t.Fatalf("to failed: %v", err)
		}
		want := "Reverted 20230927100930_Recommendations\n" +
			"Reverted 20230806151258_PlaylistName\n" +
			"Reverted 20230617080452_ImprovedPresets\n"
		if output.String() != want {
			t.Errorf("expected\n%s\ngot\n%s", want, output.String())
		}

		output.Reset()
		if err := run(t, runner, "migrate", "to", "20230806151258"); err != nil {
			t.Fatalf("to failed: %v", err)
		}
		if !strings.Contains(output.String(), "Applied 20230806151258_PlaylistName") {
			t.Errorf("expected forward move, got %s", output)
		}
	})

	t.Run("to rejects bad ids", func(t *testing.T) {
		runner, _ := newTestRunner(t, tu.NewDatabase(t))

		if err := run(t, runner, "migrate", "to", "latest"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := run(t, runner, "migrate", "to", "20990101000000"); !errors.Is(err, migrate.ErrUnknownMigration) {
			t.Errorf("expected ErrUnknownMigration, got %v", err)
		}
		if err := run(t, runner, "migrate", "to"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("status formats", func(t *testing.T) {
		runner, output := newTestRunner(t, tu.NewMigratedDatabase(t))

		if err := run(t, runner, "migrate", "status", "--format", "csv"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.HasPrefix(output.String(), "ID,Name,State,AppliedAt,Lossy\n") {
			t.Errorf("expected CSV header, got %s", output)
		}
		if strings.Contains(output.String(), ",pending,") {
			t.Errorf("expected every migration applied, got %s", output)
		}

		path := filepath.Join(t.TempDir(), "status.md")
		if err := run(t, runner, "migrate", "status", "--format", "md", "--output", path); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		tu.AssertFileExists(t, path)
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "**Pending**: 0") {
			t.Errorf("expected nothing pending, got %s", content)
		}

		if err := run(t, runner, "migrate", "status", "--format", "yaml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("verify", func(t *testing.T) {
		db := tu.NewMigratedDatabase(t)
		runner, output := newTestRunner(t, db)

		if err := run(t, runner, "migrate", "verify"); err != nil {
			t.Fatalf("verify failed on a migrated store: %v", err)
		}
		if !strings.Contains(output.String(), "Schema matches the model") {
			t.Errorf("unexpected output %s", output)
		}

		tu.MustExec(t, db, `ALTER TABLE Presets ADD COLUMN Extra TEXT`)
		output.Reset()
		if err := run(t, runner, "migrate", "verify"); !errors.Is(err, errSchemaDrift) {
			t.Fatalf("expected schema drift, got %v", err)
		}
		if !strings.Contains(output.String(), "Presets.Extra") {
			t.Errorf("expected drift to name the column, got %s", output)
		}
	})

	t.Run("failure names migration", func(t *testing.T) {
		db := tu.NewDatabase(t)
		runner, _ := newTestRunner(t, db)

		if err := run(t, runner, "migrate", "to", "20220501120000"); err != nil {
			t.Fatalf("to failed: %v", err)
		}
		tu.MustExec(t, db, `CREATE TABLE Presets (Id INTEGER PRIMARY KEY)`)

		err := run(t, runner, "migrate", "up")
		var merr *migrate.Error
		if !errors.As(err, &merr) {
			t.Fatalf("expected *migrate.Error, got %v", err)
		}
		if merr.MigrationID == 0 || merr.Step == 0 {
			t.Errorf("expected migration and step in error, got %+v", merr)
		}
	})

	t.Run("config file", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.toml")
		dbPath := filepath.Join(dir, "store.db")
		config := "[database]\npath = \"" + filepath.ToSlash(dbPath) + "\"\n\n[log]\nlevel = \"error\"\n"
		if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Logger: shared.NewDiscardLogger(), Output: output})
		if err := run(t, runner, "migrate", "up", "--config", configPath); err != nil {
			t.Fatalf("up failed: %v", err)
		}

		tu.AssertFileExists(t, dbPath)
		db := tu.OpenDatabase(t, dbPath)
		if n := tu.MustCount(t, db, "SELECT COUNT(*) FROM schema_migrations"); n != 12 {
			t.Errorf("expected 12 ledger rows, got %d", n)
		}
	})
}

func TestSetup(t *testing.T) {
	runner, output := newTestRunner(t, tu.NewDatabase(t))

	if err := run(t, runner, "setup"); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if !strings.Contains(output.String(), "Applied 20220501120000_InitialCreate") {
		t.Errorf("expected migrations to be applied, got %s", output)
	}

	output.Reset()
	if err := run(t, runner, "setup"); err != nil {
		t.Fatalf("second setup failed: %v", err)
	}
	if output.String() != "Nothing to do\n" {
		t.Errorf("expected setup to be idempotent, got %q", output.String())
	}
}

func TestPresetCommands(t *testing.T) {
	ctx := context.Background()
	db := tu.NewMigratedDatabase(t)

	user := models.NewUser(1)
	if err := repositories.NewUserRepository(db).Create(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	preset := &models.Preset{ID: 10, Name: "Morning", UserID: 1}
	if err := repositories.NewPresetRepository(db).Create(ctx, preset); err != nil {
		t.Fatalf("failed to create preset: %v", err)
	}
	playlists := repositories.NewPlaylistRepository(db)
	for _, p := range []*models.Playlist{
		{Kind: models.KindSource, URL: "https://example.com/src", Name: "Discover", PresetID: 10},
		{Kind: models.KindTarget, URL: "https://example.com/dst", PresetID: 10, Disabled: true},
	} {
		if err := playlists.Create(ctx, p); err != nil {
			t.Fatalf("failed to create playlist: %v", err)
		}
	}
	presetID := int64(10)
	if err := repositories.NewUserRepository(db).SetCurrentPreset(ctx, 1, &presetID); err != nil {
		t.Fatalf("failed to set current preset: %v", err)
	}

	t.Run("list", func(t *testing.T) {
		runner, output := newTestRunner(t, db)

		if err := run(t, runner, "preset", "list", "--user", "1"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(output.String(), "10. Morning") {
			t.Errorf("expected preset in list, got %s", output)
		}
	})

	t.Run("list unknown user", func(t *testing.T) {
		runner, _ := newTestRunner(t, db)

		if err := run(t, runner, "preset", "list", "--user", "2"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("show markdown", func(t *testing.T) {
		runner, output := newTestRunner(t, db)

		if err := run(t, runner, "preset", "show", "--id", "10", "--format", "md"); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		if !strings.Contains(output.String(), "# Morning") {
			t.Errorf("expected preset title, got %s", output)
		}
		if strings.Contains(output.String(), "example.com/dst") {
			t.Errorf("expected disabled playlist to be hidden, got %s", output)
		}
	})

	t.Run("show all", func(t *testing.T) {
		runner, output := newTestRunner(t, db)

		if err := run(t, runner, "preset", "show", "--id", "10", "--all"); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		if !strings.Contains(output.String(), "Playlists: 2") {
			t.Errorf("expected both playlists, got %s", output)
		}
	})

	t.Run("show rejects csv", func(t *testing.T) {
		runner, _ := newTestRunner(t, db)

		if err := run(t, runner, "preset", "show", "--id", "10", "--format", "csv"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}
