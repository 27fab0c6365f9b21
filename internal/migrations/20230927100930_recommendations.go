package migrations

import "github.com/desertthunder/playsync/internal/migrate"

// Recommendations adds the per-preset switch for recommended tracks.
var Recommendations = migrate.Migration{
	ID:   20230927100930,
	Name: "Recommendations",
	Up: []migrate.Step{
		migrate.AddColumn{Table: presets, Column: boolean("Settings_RecommendationsEnabled", "0")},
	},
	Down: []migrate.Step{
		migrate.DropColumn{Table: presets, Column: "Settings_RecommendationsEnabled"},
	},
}
