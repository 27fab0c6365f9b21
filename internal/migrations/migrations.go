// Package migrations is the append-only schema history of the playlist sync store.
//
// Each file defines one [migrate.Migration]. Published migrations are never edited;
// changes to the schema are made by appending a new one.
package migrations

import (
	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/models"
)

// All returns every migration in authoring order.
func All() []migrate.Migration {
	return []migrate.Migration{
		InitialCreate,
		ReworkAuth,
		UserSettingsIncludeLikedTracks,
		UserSettingsPlaylistSize,
		DisableSourcePlaylist,
		IgnoreLikedTracks,
		OverwriteTargetPlaylistSetting,
		InitialPresets,
		ImprovedPresets,
		PlaylistName,
		Recommendations,
		PlaylistTypeGuard,
	}
}

// Registry returns the ordered history.
func Registry() (*migrate.Registry, error) {
	return migrate.NewRegistry(All()...)
}

const (
	users     = models.UsersTable
	presets   = models.PresetsTable
	playlists = models.PlaylistsTable
)

func boolean(name string, def string) models.Column {
	return models.Column{Name: name, Type: models.TypeBoolean, Default: models.Literal(def)}
}
