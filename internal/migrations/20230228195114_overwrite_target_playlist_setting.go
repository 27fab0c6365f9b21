package migrations

import (
	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
)

// OverwriteTargetPlaylistSetting adds the target-only Overwrite flag. Other kinds leave it NULL.
var OverwriteTargetPlaylistSetting = migrate.Migration{
	ID:   20230228195114,
	Name: "OverwriteTargetPlaylistSetting",
	Up: []migrate.Step{
		migrate.AddColumn{Table: playlists, Column: models.Column{
			Name: "Overwrite", Type: models.TypeBoolean, Nullable: true,
		}},
	},
	Down: []migrate.Step{
		migrate.DropColumn{Table: playlists, Column: "Overwrite"},
	},
}
