package migrations

import (
	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
)

// ImprovedPresets moves playlist ownership from the user to a preset.
//
// A playlist moves to its user's current preset when that preset belongs to the user, otherwise to
// the user's oldest preset. Users with playlists but no preset receive a "Default" preset first so
// that every playlist has a destination.
var ImprovedPresets = migrate.Migration{
	ID:   20230617080452,
	Name: "ImprovedPresets",
	Up: []migrate.Step{
		migrate.Exec("create default presets for users with playlists", `
			INSERT INTO "Presets" ("Name", "UserId")
			SELECT ?, u."Id" FROM "Users" u
			WHERE EXISTS (SELECT 1 FROM "Playlists" pl WHERE pl."UserId" = u."Id")
			  AND NOT EXISTS (SELECT 1 FROM "Presets" p WHERE p."UserId" = u."Id")
			ORDER BY u."Id"`,
			models.DefaultPresetName),
		migrate.Exec("select the new default presets", `
			UPDATE "Users" SET "CurrentPresetId" = (
				SELECT MIN(p."Id") FROM "Presets" p WHERE p."UserId" = "Users"."Id"
			)
			WHERE "CurrentPresetId" IS NULL`),
		migrate.RetargetForeignKey{
			Table:     playlists,
			From:      "UserId",
			To:        models.Column{Name: "PresetId", Type: models.TypeInteger},
			Reference: models.ForeignKey{RefTable: presets, RefColumn: "Id", OnDelete: models.Cascade},
			Backfill: `
				UPDATE "Playlists" SET "PresetId" = COALESCE(
					(SELECT u."CurrentPresetId" FROM "Users" u
					   JOIN "Presets" p ON p."Id" = u."CurrentPresetId" AND p."UserId" = u."Id"
					  WHERE u."Id" = "Playlists"."UserId"),
					(SELECT MIN(p."Id") FROM "Presets" p WHERE p."UserId" = "Playlists"."UserId")
				)`,
			Index: "IX_Playlists_PresetId",
		},
	},
	Down: []migrate.Step{
		migrate.RetargetForeignKey{
			Table:     playlists,
			From:      "PresetId",
			To:        models.Column{Name: "UserId", Type: models.TypeInteger},
			Reference: models.ForeignKey{RefTable: users, RefColumn: "Id", OnDelete: models.Cascade},
			Backfill: `
				UPDATE "Playlists" SET "UserId" = (
					SELECT p."UserId" FROM "Presets" p WHERE p."Id" = "Playlists"."PresetId"
				)`,
			Index: "IX_Playlists_UserId",
		},
	},
	Lossy: "playlists of every preset merge back onto the user; presets created on the way up remain",
}
