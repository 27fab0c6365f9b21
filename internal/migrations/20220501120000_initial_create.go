package migrations

import (
	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
)

// InitialCreate creates users identified by their Spotify account and the playlists they own directly.
var InitialCreate = migrate.Migration{
	ID:   20220501120000,
	Name: "InitialCreate",
	Up: []migrate.Step{
		migrate.CreateTable{Table: models.Table{
			Name: users,
			Columns: []models.Column{
				models.IDColumn(),
				{Name: "SpotifyId", Type: models.TypeText},
			},
		}},
		migrate.CreateTable{Table: models.Table{
			Name: playlists,
			Columns: []models.Column{
				models.IDColumn(),
				{Name: "PlaylistType", Type: models.TypeInteger},
				{Name: "Url", Type: models.TypeText},
				{Name: "UserId", Type: models.TypeInteger},
			},
			ForeignKeys: []models.ForeignKey{
				{Column: "UserId", RefTable: users, RefColumn: "Id", OnDelete: models.Cascade},
			},
			Indexes: []models.Index{{Name: "IX_Playlists_UserId", Columns: []string{"UserId"}}},
		}},
	},
	Down: []migrate.Step{
		migrate.DropTable{Name: playlists},
		migrate.DropTable{Name: users},
	},
	Lossy: "drops every user and playlist",
}
