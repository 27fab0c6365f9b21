package migrations

import (
	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
)

// InitialPresets moves settings off the user into named presets.
//
// Every existing user gets a "Default" preset holding their current settings and pointing
// CurrentPresetId at it. Playlists stay owned by the user until [ImprovedPresets].
var InitialPresets = migrate.Migration{
	ID:   20230610144840,
	Name: "InitialPresets",
	Up: []migrate.Step{
		migrate.CreateTable{Table: models.Table{
			Name: presets,
			Columns: []models.Column{
				models.IDColumn(),
				{Name: "Name", Type: models.TypeText},
				{Name: "UserId", Type: models.TypeInteger},
				{Name: "Settings_IncludeLikedTracks", Type: models.TypeBoolean, Nullable: true},
				{Name: "Settings_PlaylistSize", Type: models.TypeInteger, Default: models.Literal("20")},
			},
			ForeignKeys: []models.ForeignKey{
				{Column: "UserId", RefTable: users, RefColumn: "Id", OnDelete: models.Cascade},
			},
			Indexes: []models.Index{{Name: "IX_Presets_UserId", Columns: []string{"UserId"}}},
		}},
		migrate.AddColumn{
			Table:      users,
			Column:     models.Column{Name: "CurrentPresetId", Type: models.TypeInteger, Nullable: true},
			ForeignKey: &models.ForeignKey{Column: "CurrentPresetId", RefTable: presets, RefColumn: "Id", OnDelete: models.SetNull},
		},
		migrate.CreateIndex{Table: users, Index: models.Index{Name: "IX_Users_CurrentPresetId", Columns: []string{"CurrentPresetId"}}},
		migrate.Exec("copy user settings into default presets", `
			INSERT INTO "Presets" ("Name", "UserId", "Settings_IncludeLikedTracks", "Settings_PlaylistSize")
			SELECT ?, "Id", "Settings_IncludeLikedTracks", "Settings_PlaylistSize" FROM "Users" ORDER BY "Id"`,
			models.DefaultPresetName),
		migrate.Exec("point users at their default preset", `
			UPDATE "Users" SET "CurrentPresetId" = (
				SELECT MIN(p."Id") FROM "Presets" p WHERE p."UserId" = "Users"."Id"
			)`),
		migrate.DropColumn{Table: users, Column: "Settings_IncludeLikedTracks"},
		migrate.DropColumn{Table: users, Column: "Settings_PlaylistSize"},
	},
	Down: []migrate.Step{
		migrate.AddColumn{Table: users, Column: models.Column{
			Name: "Settings_IncludeLikedTracks", Type: models.TypeBoolean, Nullable: true,
		}},
		migrate.AddColumn{Table: users, Column: models.Column{
			Name: "Settings_PlaylistSize", Type: models.TypeInteger, Default: models.Literal("20"),
		}},
		migrate.Exec("restore user settings from the current preset", `
			UPDATE "Users" SET
				"Settings_IncludeLikedTracks" = (SELECT p."Settings_IncludeLikedTracks" FROM "Presets" p WHERE p."Id" = "Users"."CurrentPresetId"),
				"Settings_PlaylistSize" = (SELECT p."Settings_PlaylistSize" FROM "Presets" p WHERE p."Id" = "Users"."CurrentPresetId")
			WHERE "CurrentPresetId" IS NOT NULL`),
		migrate.DropIndex{Name: "IX_Users_CurrentPresetId"},
		migrate.DropColumn{Table: users, Column: "CurrentPresetId"},
		migrate.DropTable{Name: presets},
	},
	Lossy: "presets other than each user's current one are dropped",
}
