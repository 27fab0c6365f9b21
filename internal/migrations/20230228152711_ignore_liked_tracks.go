package migrations

import (
	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
)

// IgnoreLikedTracks makes IncludeLikedTracks tri-state: NULL inherits the default behavior.
var IgnoreLikedTracks = migrate.Migration{
	ID:   20230228152711,
	Name: "IgnoreLikedTracks",
	Up: []migrate.Step{
		migrate.AlterNullability{Table: users, Column: "Settings_IncludeLikedTracks", Nullable: true},
		migrate.AlterDefault{Table: users, Column: "Settings_IncludeLikedTracks"},
	},
	Down: []migrate.Step{
		migrate.AlterDefault{Table: users, Column: "Settings_IncludeLikedTracks", Default: models.Literal("0")},
		migrate.AlterNullability{Table: users, Column: "Settings_IncludeLikedTracks", Backfill: false},
	},
	Lossy: "unset IncludeLikedTracks becomes false",
}
