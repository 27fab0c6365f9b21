package migrations

import (
	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
)

// PlaylistTypeGuard makes the store reject unknown discriminators and discriminator changes.
var PlaylistTypeGuard = migrate.Migration{
	ID:   20231001090000,
	Name: "PlaylistTypeGuard",
	Up: []migrate.Step{
		migrate.Exec("create "+models.PlaylistTypeValidTrigger, `
			CREATE TRIGGER "TR_Playlists_PlaylistType_Valid"
			BEFORE INSERT ON "Playlists"
			FOR EACH ROW WHEN NEW."PlaylistType" NOT IN (0, 1, 2, 3)
			BEGIN
				SELECT RAISE(ABORT, 'unknown playlist discriminator');
			END`),
		migrate.Exec("create "+models.PlaylistTypeImmutableTrigger, `
			CREATE TRIGGER "TR_Playlists_PlaylistType_Immutable"
			BEFORE UPDATE OF "PlaylistType" ON "Playlists"
			FOR EACH ROW WHEN NEW."PlaylistType" <> OLD."PlaylistType"
			BEGIN
				SELECT RAISE(ABORT, 'playlist discriminator is immutable');
			END`),
	},
	Down: []migrate.Step{
		migrate.Exec("drop "+models.PlaylistTypeImmutableTrigger, `DROP TRIGGER IF EXISTS "TR_Playlists_PlaylistType_Immutable"`),
		migrate.Exec("drop "+models.PlaylistTypeValidTrigger, `DROP TRIGGER IF EXISTS "TR_Playlists_PlaylistType_Valid"`),
	},
}
