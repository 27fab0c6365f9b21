package migrations

import (
	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
)

var PlaylistName = migrate.Migration{
	ID:   20230806151258,
	Name: "PlaylistName",
	Up: []migrate.Step{
		migrate.AddColumn{Table: playlists, Column: models.Column{
			Name: "Name", Type: models.TypeText, Default: models.Literal("''"),
		}},
	},
	Down: []migrate.Step{
		migrate.DropColumn{Table: playlists, Column: "Name"},
	},
}
