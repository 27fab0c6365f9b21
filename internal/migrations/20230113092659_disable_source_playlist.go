package migrations

import "github.com/desertthunder/playsync/internal/migrate"

// DisableSourcePlaylist lets a playlist be skipped by sync without deleting it.
var DisableSourcePlaylist = migrate.Migration{
	ID:   20230113092659,
	Name: "DisableSourcePlaylist",
	Up: []migrate.Step{
		migrate.AddColumn{Table: playlists, Column: boolean("Disabled", "0")},
	},
	Down: []migrate.Step{
		migrate.DropColumn{Table: playlists, Column: "Disabled"},
	},
}
