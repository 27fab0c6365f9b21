package migrations

import "github.com/desertthunder/playsync/internal/migrate"

var UserSettingsIncludeLikedTracks = migrate.Migration{
	ID:   20220522103204,
	Name: "UserSettingsIncludeLikedTracks",
	Up: []migrate.Step{
		migrate.AddColumn{Table: users, Column: boolean("Settings_IncludeLikedTracks", "0")},
	},
	Down: []migrate.Step{
		migrate.DropColumn{Table: users, Column: "Settings_IncludeLikedTracks"},
	},
}
