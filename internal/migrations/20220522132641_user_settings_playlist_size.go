package migrations

import (
	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
)

var UserSettingsPlaylistSize = migrate.Migration{
	ID:   20220522132641,
	Name: "UserSettingsPlaylistSize",
	Up: []migrate.Step{
		migrate.AddColumn{Table: users, Column: models.Column{
			Name: "Settings_PlaylistSize", Type: models.TypeInteger, Default: models.Literal("20"),
		}},
	},
	Down: []migrate.Step{
		migrate.DropColumn{Table: users, Column: "Settings_PlaylistSize"},
	},
}
