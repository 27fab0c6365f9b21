package migrate_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
	th "github.com/desertthunder/playsync/internal/testing"
	"github.com/google/go-cmp/cmp"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	createPlaylists = migrate.Migration{
		ID:   20240101000000,
		Name: "CreatePlaylists",
		Up: []migrate.Step{
			migrate.CreateTable{Table: models.Table{
				Name: "Playlists",
				Columns: []models.Column{
					models.IDColumn(),
					{Name: "Url", Type: models.TypeText},
					{Name: "LikedTracks", Type: models.TypeBoolean, Nullable: true},
				},
			}},
		},
		Down: []migrate.Step{migrate.DropTable{Name: "Playlists"}},
	}
	addDisabled = migrate.Migration{
		ID:   20240102000000,
		Name: "AddDisabled",
		Up: []migrate.Step{
			migrate.AddColumn{Table: "Playlists", Column: models.Column{
				Name: "Disabled", Type: models.TypeBoolean, Default: models.Literal("0"),
			}},
		},
		Down: []migrate.Step{migrate.DropColumn{Table: "Playlists", Column: "Disabled"}},
	}
	addOverwrite = migrate.Migration{
		ID:   20240103000000,
		Name: "AddOverwrite",
		Up: []migrate.Step{
			migrate.AddColumn{Table: "Playlists", Column: models.Column{
				Name: "Overwrite", Type: models.TypeBoolean, Nullable: true,
			}},
		},
		Down: []migrate.Step{migrate.DropColumn{Table: "Playlists", Column: "Overwrite"}},
	}
)

func newRegistry(t *testing.T, ms ...migrate.Migration) *migrate.Registry {
	t.Helper()
	if len(ms) == 0 {
		ms = []migrate.Migration{addOverwrite, createPlaylists, addDisabled}
	}
	r, err := migrate.NewRegistry(ms...)
	require.NoError(t, err)
	return r
}

func inspect(t *testing.T, q migrate.Querier) models.Schema {
	t.Helper()
	s, err := migrate.Inspect(context.Background(), q)
	require.NoError(t, err)
	return s
}

func keys(ms []migrate.Migration) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Key()
	}
	return out
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("orders by id", func(t *testing.T) {
		r := newRegistry(t)
		require.Equal(t, []int64{20240101000000, 20240102000000, 20240103000000}, r.IDs())
		require.Equal(t, 1, r.Position(addDisabled.ID))
		require.Equal(t, -1, r.Position(1))
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		clash := addDisabled
		clash.Name = "Clash"
		_, err := migrate.NewRegistry(createPlaylists, addDisabled, clash)
		require.ErrorIs(t, err, migrate.ErrDuplicateMigration)
		require.Contains(t, err.Error(), "Clash")
	})

	t.Run("rejects malformed migrations", func(t *testing.T) {
		_, err := migrate.NewRegistry(migrate.Migration{ID: 42, Name: "NotATimestamp"})
		require.ErrorIs(t, err, migrate.ErrInvalidMigration)
		require.Contains(t, err.Error(), "no up steps")
	})
}

func TestPlanApplyRevert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("plan lists pending migrations in order", func(t *testing.T) {
		db := th.NewDatabase(t)
		e := migrate.New(db, newRegistry(t))

		plan, err := e.Plan(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{
			"20240101000000_CreatePlaylists",
			"20240102000000_AddDisabled",
			"20240103000000_AddOverwrite",
		}, keys(plan))

		require.NoError(t, e.Apply(ctx, plan[0]))

		plan, err = e.Plan(ctx)
		require.NoError(t, err)
		require.Equal(t, []int64{addDisabled.ID, addOverwrite.ID}, []int64{plan[0].ID, plan[1].ID})
	})

	t.Run("reverting B then A restores the schema before A", func(t *testing.T) {
		db := th.NewDatabase(t)
		e := migrate.New(db, newRegistry(t))

		require.NoError(t, e.Apply(ctx, createPlaylists))
		th.MustExec(t, db, `INSERT INTO "Playlists" ("Url", "LikedTracks") VALUES ('a', NULL), ('b', 1)`)
		before := inspect(t, db)

		require.NoError(t, e.Apply(ctx, addDisabled))
		require.NoError(t, e.Apply(ctx, addOverwrite))

		after := inspect(t, db)
		playlists, ok := after.Table("Playlists")
		require.True(t, ok)
		disabled, ok := playlists.Column("Disabled")
		require.True(t, ok)
		require.False(t, disabled.Nullable)
		require.Equal(t, "0", *disabled.Default)
		require.Equal(t, 2, th.MustCount(t, db, `SELECT COUNT(*) FROM "Playlists" WHERE "Disabled" = 0`))

		require.NoError(t, e.Revert(ctx, addOverwrite))
		require.NoError(t, e.Revert(ctx, addDisabled))

		restored := inspect(t, db)
		require.Empty(t, migrate.Diff(before, restored))
		if diff := cmp.Diff(before, restored); diff != "" {
			t.Fatalf("schema changed after revert (-before +after):\n%s", diff)
		}
		require.Equal(t, 2, th.MustCount(t, db, `SELECT COUNT(*) FROM "Playlists"`))
	})

	t.Run("out of order apply is rejected", func(t *testing.T) {
		db := th.NewDatabase(t)
		e := migrate.New(db, newRegistry(t))

		require.NoError(t, e.Apply(ctx, createPlaylists))

		err := e.Apply(ctx, addOverwrite)
		require.ErrorIs(t, err, migrate.ErrSequencingViolation)

		var merr *migrate.Error
		require.ErrorAs(t, err, &merr)
		require.Equal(t, addOverwrite.ID, merr.MigrationID)
		require.Equal(t, migrate.DirectionUp, merr.Direction)
		require.Contains(t, err.Error(), "20240102000000_AddDisabled is still pending")

		require.ErrorIs(t, e.Apply(ctx, createPlaylists), migrate.ErrSequencingViolation)
	})

	t.Run("reverting anything but the latest is rejected", func(t *testing.T) {
		db := th.NewDatabase(t)
		e := migrate.New(db, newRegistry(t))

		_, err := e.Up(ctx)
		require.NoError(t, err)

		require.ErrorIs(t, e.Revert(ctx, addDisabled), migrate.ErrSequencingViolation)
		require.NoError(t, e.Revert(ctx, addOverwrite))
		require.ErrorIs(t, e.Revert(ctx, addOverwrite), migrate.ErrSequencingViolation)
	})

	t.Run("unknown migration is rejected", func(t *testing.T) {
		db := th.NewDatabase(t)
		e := migrate.New(db, newRegistry(t, createPlaylists))

		err := e.Apply(ctx, addDisabled)
		require.ErrorIs(t, err, migrate.ErrSequencingViolation)
		require.ErrorIs(t, err, migrate.ErrUnknownMigration)
	})

	t.Run("ledger with a gap is rejected", func(t *testing.T) {
		db := th.NewDatabase(t)
		e := migrate.New(db, newRegistry(t))
		require.NoError(t, e.Init(ctx))

		th.MustExec(t, db, `INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			addDisabled.ID, addDisabled.Name, time.Now())

		_, err := e.Plan(ctx)
		require.ErrorIs(t, err, migrate.ErrSequencingViolation)
		_, err = e.Up(ctx)
		require.ErrorIs(t, err, migrate.ErrSequencingViolation)
	})

	t.Run("migration without down steps cannot be reverted", func(t *testing.T) {
		db := th.NewDatabase(t)
		oneWay := createPlaylists
		oneWay.Down = nil
		e := migrate.New(db, newRegistry(t, oneWay))

		require.NoError(t, e.Apply(ctx, oneWay))
		err := e.Revert(ctx, oneWay)
		require.ErrorIs(t, err, migrate.ErrIrreversible)

		status, err := e.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, oneWay.ID, status.Current)
	})
}

func TestUpDownTo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := th.NewDatabase(t)
	e := migrate.New(db, newRegistry(t))

	applied, err := e.To(ctx, addDisabled.ID)
	require.NoError(t, err)
	require.Equal(t, []string{createPlaylists.Key(), addDisabled.Key()}, keys(applied))

	status, err := e.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, addDisabled.ID, status.Current)
	require.Equal(t, 1, status.Pending)
	require.Equal(t, migrate.Applied, status.Entries[0].State)
	require.NotNil(t, status.Entries[0].AppliedAt)
	require.Equal(t, migrate.Pending, status.Entries[2].State)
	require.Nil(t, status.Entries[2].AppliedAt)
	require.Equal(t, "pending", status.Entries[2].State.String())

	applied, err = e.Up(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{addOverwrite.Key()}, keys(applied))

	applied, err = e.Up(ctx)
	require.NoError(t, err)
	require.Empty(t, applied)

	reverted, err := e.Down(ctx)
	require.NoError(t, err)
	require.Equal(t, addOverwrite.ID, reverted.ID)

	reverted2, err := e.To(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{addDisabled.Key(), createPlaylists.Key()}, keys(reverted2))
	require.Empty(t, inspect(t, db).Tables)

	none, err := e.Down(ctx)
	require.NoError(t, err)
	require.Nil(t, none)

	_, err = e.To(ctx, 20991231000000)
	require.ErrorIs(t, err, migrate.ErrUnknownMigration)
}

func TestFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("store errors are transform failures", func(t *testing.T) {
		db := th.NewDatabase(t)
		broken := migrate.Migration{
			ID:   20240104000000,
			Name: "Broken",
			Up: []migrate.Step{
				migrate.CreateTable{Table: models.Table{
					Name:    "Scratch",
					Columns: []models.Column{models.IDColumn()},
				}},
				migrate.Exec("insert into a missing table", `INSERT INTO "Nope" VALUES (1)`),
			},
			Down: []migrate.Step{migrate.DropTable{Name: "Scratch"}},
		}
		e := migrate.New(db, newRegistry(t, createPlaylists, broken))
		require.NoError(t, e.Apply(ctx, createPlaylists))
		before := inspect(t, db)

		err := e.Apply(ctx, broken)
		require.ErrorIs(t, err, migrate.ErrTransformFailure)

		var sqliteErr sqlite3.Error
		require.ErrorAs(t, err, &sqliteErr)

		var merr *migrate.Error
		require.ErrorAs(t, err, &merr)
		require.Equal(t, 2, merr.Step)
		require.Equal(t, "insert into a missing table", merr.StepDesc)
		require.Contains(t, err.Error(), "20240104000000_Broken")

		require.Empty(t, migrate.Diff(before, inspect(t, db)), "failed migration must leave no partial state")
		plan, err := e.Plan(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{broken.Key()}, keys(plan))
	})

	t.Run("tightening without backfill leaves rows untouched", func(t *testing.T) {
		db := th.NewDatabase(t)
		tighten := migrate.Migration{
			ID:   20240105000000,
			Name: "RequireLikedTracks",
			Up: []migrate.Step{
				migrate.AlterNullability{Table: "Playlists", Column: "LikedTracks"},
			},
			Down: []migrate.Step{
				migrate.AlterNullability{Table: "Playlists", Column: "LikedTracks", Nullable: true},
			},
		}
		e := migrate.New(db, newRegistry(t, createPlaylists, tighten))
		require.NoError(t, e.Apply(ctx, createPlaylists))
		th.MustExec(t, db, `INSERT INTO "Playlists" ("Url", "LikedTracks") VALUES ('a', NULL), ('b', 1)`)

		err := e.Apply(ctx, tighten)
		require.ErrorIs(t, err, migrate.ErrBackfillRequired)
		require.NotErrorIs(t, err, migrate.ErrTransformFailure)

		require.Equal(t, 1, th.MustCount(t, db, `SELECT COUNT(*) FROM "Playlists" WHERE "LikedTracks" IS NULL`))
		playlists, _ := inspect(t, db).Table("Playlists")
		col, _ := playlists.Column("LikedTracks")
		require.True(t, col.Nullable)

		status, err := e.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, createPlaylists.ID, status.Current)
	})

	t.Run("tightening with backfill rewrites nulls", func(t *testing.T) {
		db := th.NewDatabase(t)
		tighten := migrate.Migration{
			ID:   20240105000000,
			Name: "RequireLikedTracks",
			Up: []migrate.Step{
				migrate.AlterNullability{Table: "Playlists", Column: "LikedTracks", Backfill: false},
			},
			Down: []migrate.Step{
				migrate.AlterNullability{Table: "Playlists", Column: "LikedTracks", Nullable: true},
			},
		}
		e := migrate.New(db, newRegistry(t, createPlaylists, tighten))
		require.NoError(t, e.Apply(ctx, createPlaylists))
		th.MustExec(t, db, `INSERT INTO "Playlists" ("Url", "LikedTracks") VALUES ('a', NULL), ('b', 1)`)

		require.NoError(t, e.Apply(ctx, tighten))
		require.Equal(t, 1, th.MustCount(t, db, `SELECT COUNT(*) FROM "Playlists" WHERE "LikedTracks" = 0`))

		_, err := db.Exec(`INSERT INTO "Playlists" ("Url", "LikedTracks") VALUES ('c', NULL)`)
		require.Error(t, err)
	})

	t.Run("foreign key violations abort the migration", func(t *testing.T) {
		db := th.NewDatabase(t)
		orphans := migrate.Migration{
			ID:   20240106000000,
			Name: "Orphans",
			Up: []migrate.Step{
				migrate.CreateTable{Table: models.Table{
					Name: "Tracks",
					Columns: []models.Column{
						models.IDColumn(),
						{Name: "PlaylistId", Type: models.TypeInteger},
					},
					ForeignKeys: []models.ForeignKey{
						{Column: "PlaylistId", RefTable: "Playlists", RefColumn: "Id", OnDelete: models.Cascade},
					},
				}},
				migrate.Exec("insert orphan", `INSERT INTO "Tracks" ("PlaylistId") VALUES (999)`),
			},
			Down: []migrate.Step{migrate.DropTable{Name: "Tracks"}},
		}
		e := migrate.New(db, newRegistry(t, createPlaylists, orphans))
		require.NoError(t, e.Apply(ctx, createPlaylists))

		err := e.Apply(ctx, orphans)
		require.ErrorIs(t, err, migrate.ErrTransformFailure)
		require.Contains(t, err.Error(), "foreign key violations")
		_, ok := inspect(t, db).Table("Tracks")
		require.False(t, ok)
	})

	t.Run("invalid table definitions are model violations", func(t *testing.T) {
		db := th.NewDatabase(t)
		bad := migrate.Migration{
			ID:   20240107000000,
			Name: "BadTable",
			Up: []migrate.Step{
				migrate.CreateTable{Table: models.Table{
					Name:        "Bad",
					Columns:     []models.Column{models.IDColumn()},
					ForeignKeys: []models.ForeignKey{{Column: "Missing", RefTable: "Playlists", RefColumn: "Id"}},
				}},
			},
		}
		e := migrate.New(db, newRegistry(t, bad))
		require.ErrorIs(t, e.Apply(ctx, bad), migrate.ErrModelViolation)
	})

	t.Run("cancellation before commit persists nothing", func(t *testing.T) {
		db, _ := th.NewFileDatabase(t)
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		cancelled := migrate.Migration{
			ID:   20240108000000,
			Name: "Cancelled",
			Up: []migrate.Step{
				migrate.CreateTable{Table: models.Table{
					Name:    "Scratch",
					Columns: []models.Column{models.IDColumn()},
				}},
				cancelStep{cancel: cancel},
				migrate.Exec("insert", `INSERT INTO "Scratch" ("Id") VALUES (1)`),
			},
			Down: []migrate.Step{migrate.DropTable{Name: "Scratch"}},
		}
		e := migrate.New(db, newRegistry(t, cancelled))

		err := e.Apply(cctx, cancelled)
		require.ErrorIs(t, err, context.Canceled)

		_, ok := inspect(t, db).Table("Scratch")
		require.False(t, ok)
		plan, err := e.Plan(ctx)
		require.NoError(t, err)
		require.Len(t, plan, 1)
	})
}

type cancelStep struct {
	cancel context.CancelFunc
}

func (s cancelStep) Describe() string { return "cancel" }

func (s cancelStep) Apply(context.Context, migrate.Querier) error {
	s.cancel()
	return nil
}

func TestLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("held lock times out", func(t *testing.T) {
		db := th.NewDatabase(t)
		e := migrate.New(db, newRegistry(t),
			migrate.WithLockTimeout(100*time.Millisecond),
			migrate.WithLockPollInterval(10*time.Millisecond),
		)
		require.NoError(t, e.Init(ctx))
		th.MustExec(t, db, `INSERT INTO schema_migrations_lock (id, holder, acquired_at) VALUES (1, 'other', ?)`,
			time.Now().UnixMilli())

		_, err := e.Up(ctx)
		require.ErrorIs(t, err, migrate.ErrLockTimeout)
		require.Equal(t, 1, th.MustCount(t, db, `SELECT COUNT(*) FROM schema_migrations_lock WHERE holder = 'other'`))
	})

	t.Run("stale lock is reclaimed", func(t *testing.T) {
		db := th.NewDatabase(t)
		e := migrate.New(db, newRegistry(t),
			migrate.WithLockTimeout(time.Second),
			migrate.WithStaleLockAfter(time.Minute),
		)
		require.NoError(t, e.Init(ctx))
		th.MustExec(t, db, `INSERT INTO schema_migrations_lock (id, holder, acquired_at) VALUES (1, 'crashed', ?)`,
			time.Now().Add(-time.Hour).UnixMilli())

		applied, err := e.Up(ctx)
		require.NoError(t, err)
		require.Len(t, applied, 3)
		require.Equal(t, 0, th.MustCount(t, db, `SELECT COUNT(*) FROM schema_migrations_lock`))
	})

	t.Run("cancelled wait returns the context error", func(t *testing.T) {
		db := th.NewDatabase(t)
		e := migrate.New(db, newRegistry(t), migrate.WithLockPollInterval(10*time.Millisecond))
		require.NoError(t, e.Init(ctx))
		th.MustExec(t, db, `INSERT INTO schema_migrations_lock (id, holder, acquired_at) VALUES (1, 'other', ?)`,
			time.Now().UnixMilli())

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := e.Up(cctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestConcurrentEngines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("concurrent up applies each migration once", func(t *testing.T) {
		_, path := th.NewFileDatabase(t)
		var applied atomic.Int64

		g, gctx := errgroup.WithContext(ctx)
		for range 2 {
			db := th.OpenDatabase(t, path)
			e := migrate.New(db, newRegistry(t), migrate.WithLockPollInterval(5*time.Millisecond))
			g.Go(func() error {
				done, err := e.Up(gctx)
				applied.Add(int64(len(done)))
				return err
			})
		}
		require.NoError(t, g.Wait())
		require.EqualValues(t, 3, applied.Load())

		db := th.OpenDatabase(t, path)
		require.Equal(t, 3, th.MustCount(t, db, `SELECT COUNT(*) FROM schema_migrations`))
	})

	t.Run("concurrent plan and apply", func(t *testing.T) {
		_, path := th.NewFileDatabase(t)
		var applied, rejected atomic.Int64

		g, gctx := errgroup.WithContext(ctx)
		for range 2 {
			db := th.OpenDatabase(t, path)
			e := migrate.New(db, newRegistry(t), migrate.WithLockPollInterval(5*time.Millisecond))
			g.Go(func() error {
				plan, err := e.Plan(gctx)
				if err != nil {
					return err
				}
				for _, m := range plan {
					err := e.Apply(gctx, m)
					switch {
					case err == nil:
						applied.Add(1)
					case errors.Is(err, migrate.ErrSequencingViolation):
						rejected.Add(1)
					default:
						return err
					}
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		require.EqualValues(t, 3, applied.Load())

		db := th.OpenDatabase(t, path)
		e := migrate.New(db, newRegistry(t))
		plan, err := e.Plan(ctx)
		require.NoError(t, err)
		require.Empty(t, plan)
	})
}
