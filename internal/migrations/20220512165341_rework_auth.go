package migrations

import (
	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
)

// ReworkAuth stops storing the Spotify account id on the user.
var ReworkAuth = migrate.Migration{
	ID:   20220512165341,
	Name: "ReworkAuth",
	Up: []migrate.Step{
		migrate.DropColumn{Table: users, Column: "SpotifyId"},
	},
	Down: []migrate.Step{
		migrate.AddColumn{Table: users, Column: models.Column{
			Name: "SpotifyId", Type: models.TypeText, Default: models.Literal("''"),
		}},
	},
	Lossy: "SpotifyId comes back empty and keeps a '' default it never had",
}
