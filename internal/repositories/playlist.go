package repositories

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
)

type playlistRow struct {
	ID        int64        `db:"Id"`
	Kind      int          `db:"PlaylistType"`
	URL       string       `db:"Url"`
	Name      string       `db:"Name"`
	Disabled  bool         `db:"Disabled"`
	PresetID  int64        `db:"PresetId"`
	Overwrite sql.NullBool `db:"Overwrite"`
}

func (r playlistRow) model() *models.Playlist {
	return &models.Playlist{
		ID:        r.ID,
		Kind:      models.PlaylistKind(r.Kind),
		URL:       r.URL,
		Name:      r.Name,
		Disabled:  r.Disabled,
		PresetID:  r.PresetID,
		Overwrite: boolPtr(r.Overwrite),
	}
}

var playlistColumns = []string{"Id", "PlaylistType", "Url", "Name", "Disabled", "PresetId", "Overwrite"}

// ListFilter narrows [PlaylistRepository.List]. Empty Kinds matches every variant.
type ListFilter struct {
	PresetID        int64
	Kinds           []models.PlaylistKind
	IncludeDisabled bool
}

// PlaylistRepository persists every playlist variant in one table tagged by PlaylistType.
type PlaylistRepository struct {
	db *sqlx.DB
}

// NewPlaylistRepository creates a new [PlaylistRepository] with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: sqlx.NewDb(db, driverName)}
}

// Create inserts playlist under an existing preset. Target kinds without an overwrite flag start in append mode.
func (r *PlaylistRepository) Create(ctx context.Context, playlist *models.Playlist) error {
	if playlist.Kind.IsTarget() && playlist.Overwrite == nil {
		playlist.Overwrite = lo.ToPtr(false)
	}
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		ok, err := exists(ctx, tx, models.PresetsTable, playlist.PresetID)
		if err != nil {
			return err
		}
		if !ok {
			return models.Violation("Playlist", "PresetID", fmt.Sprintf("preset %d does not exist", playlist.PresetID))
		}

		values := map[string]any{
			"PlaylistType": int(playlist.Kind),
			"Url":          playlist.URL,
			"Name":         playlist.Name,
			"Disabled":     playlist.Disabled,
			"PresetId":     playlist.PresetID,
			"Overwrite":    nullBool(playlist.Overwrite),
		}
		if playlist.ID != 0 {
			values["Id"] = playlist.ID
		}

		res, err := exec(ctx, tx, sq.Insert(models.PlaylistsTable).SetMap(values))
		if err != nil {
			return fmt.Errorf("failed to insert playlist: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read playlist id: %w", err)
		}
		playlist.ID = id
		return nil
	})
}

// Get retrieves a playlist by ID, disabled or not
func (r *PlaylistRepository) Get(ctx context.Context, id int64) (*models.Playlist, error) {
	var row playlistRow
	err := get(ctx, r.db, &row, sq.Select(playlistColumns...).From(models.PlaylistsTable).Where(sq.Eq{"Id": id}))
	if isNoRows(err) {
		return nil, notFound("playlist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist: %w", err)
	}
	return row.model(), nil
}

// List retrieves the playlists of a preset ordered by ID. Disabled playlists are skipped unless requested.
func (r *PlaylistRepository) List(ctx context.Context, filter ListFilter) ([]*models.Playlist, error) {
	b := sq.Select(playlistColumns...).
		From(models.PlaylistsTable).
		Where(sq.Eq{"PresetId": filter.PresetID}).
		OrderBy("Id")
	if len(filter.Kinds) > 0 {
		b = b.Where(sq.Eq{"PlaylistType": lo.Map(filter.Kinds, func(k models.PlaylistKind, _ int) int { return int(k) })})
	}
	if !filter.IncludeDisabled {
		b = b.Where(sq.Eq{"Disabled": false})
	}

	var rows []playlistRow
	if err := list(ctx, r.db, &rows, b); err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}

	playlists := make([]*models.Playlist, len(rows))
	for i, row := range rows {
		playlists[i] = row.model()
	}
	return playlists, nil
}

// Update writes the mutable fields of playlist.
//
// Changing the kind or moving the playlist to another preset is a [models.ErrModelViolation].
func (r *PlaylistRepository) Update(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var current playlistRow
		err := get(ctx, tx, &current, sq.Select(playlistColumns...).From(models.PlaylistsTable).Where(sq.Eq{"Id": playlist.ID}))
		if isNoRows(err) {
			return notFound("playlist", playlist.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to query playlist: %w", err)
		}
		if models.PlaylistKind(current.Kind) != playlist.Kind {
			return models.Violation("Playlist", "Kind",
				fmt.Sprintf("cannot change from %s to %s", models.PlaylistKind(current.Kind), playlist.Kind))
		}
		if current.PresetID != playlist.PresetID {
			return models.Violation("Playlist", "PresetID", fmt.Sprintf("belongs to preset %d and cannot move", current.PresetID))
		}

		_, err = exec(ctx, tx, sq.Update(models.PlaylistsTable).
			Set("Url", playlist.URL).
			Set("Name", playlist.Name).
			Set("Disabled", playlist.Disabled).
			Set("Overwrite", nullBool(playlist.Overwrite)).
			Where(sq.Eq{"Id": playlist.ID}))
		if err != nil {
			return fmt.Errorf("failed to update playlist: %w", err)
		}
		return nil
	})
}

// SetDisabled toggles whether sync skips the playlist.
func (r *PlaylistRepository) SetDisabled(ctx context.Context, id int64, disabled bool) error {
	res, err := exec(ctx, r.db, sq.Update(models.PlaylistsTable).Set("Disabled", disabled).Where(sq.Eq{"Id": id}))
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound("playlist", id)
	}
	return nil
}

// Delete removes a playlist
func (r *PlaylistRepository) Delete(ctx context.Context, id int64) error {
	res, err := exec(ctx, r.db, sq.Delete(models.PlaylistsTable).Where(sq.Eq{"Id": id}))
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound("playlist", id)
	}
	return nil
}
