package repositories

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/jmoiron/sqlx"
)

type presetRow struct {
	ID                     int64        `db:"Id"`
	Name                   string       `db:"Name"`
	UserID                 int64        `db:"UserId"`
	IncludeLikedTracks     sql.NullBool `db:"Settings_IncludeLikedTracks"`
	PlaylistSize           int          `db:"Settings_PlaylistSize"`
	RecommendationsEnabled bool         `db:"Settings_RecommendationsEnabled"`
}

func (r presetRow) model() *models.Preset {
	return &models.Preset{
		ID:     r.ID,
		Name:   r.Name,
		UserID: r.UserID,
		Settings: models.Settings{
			IncludeLikedTracks:     boolPtr(r.IncludeLikedTracks),
			PlaylistSize:           r.PlaylistSize,
			RecommendationsEnabled: r.RecommendationsEnabled,
		},
	}
}

var presetColumns = []string{
	"Id",
	"Name",
	"UserId",
	models.SettingsColumn("IncludeLikedTracks"),
	models.SettingsColumn("PlaylistSize"),
	models.SettingsColumn("RecommendationsEnabled"),
}

func settingsMap(s models.Settings) map[string]any {
	return map[string]any{
		models.SettingsColumn("IncludeLikedTracks"):     nullBool(s.IncludeLikedTracks),
		models.SettingsColumn("PlaylistSize"):           s.PlaylistSize,
		models.SettingsColumn("RecommendationsEnabled"): s.RecommendationsEnabled,
	}
}

// PresetRepository persists [models.Preset] rows with their settings flattened onto the row.
type PresetRepository struct {
	db *sqlx.DB
}

// NewPresetRepository creates a new [PresetRepository] with the given database connection
func NewPresetRepository(db *sql.DB) *PresetRepository {
	return &PresetRepository{db: sqlx.NewDb(db, driverName)}
}

// Create inserts preset for an existing user. Zero settings are replaced with [models.DefaultSettings].
func (r *PresetRepository) Create(ctx context.Context, preset *models.Preset) error {
	if preset.Settings.IsZero() {
		preset.Settings = models.DefaultSettings()
	}
	if err := preset.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		ok, err := exists(ctx, tx, models.UsersTable, preset.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return models.Violation("Preset", "UserID", fmt.Sprintf("user %d does not exist", preset.UserID))
		}

		values := settingsMap(preset.Settings)
		values["Name"] = preset.Name
		values["UserId"] = preset.UserID
		if preset.ID != 0 {
			values["Id"] = preset.ID
		}

		res, err := exec(ctx, tx, sq.Insert(models.PresetsTable).SetMap(values))
		if err != nil {
			return fmt.Errorf("failed to insert preset: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read preset id: %w", err)
		}
		preset.ID = id
		return nil
	})
}

// Get retrieves a preset by ID
func (r *PresetRepository) Get(ctx context.Context, id int64) (*models.Preset, error) {
	var row presetRow
	err := get(ctx, r.db, &row, sq.Select(presetColumns...).From(models.PresetsTable).Where(sq.Eq{"Id": id}))
	if isNoRows(err) {
		return nil, notFound("preset", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query preset: %w", err)
	}
	return row.model(), nil
}

// List retrieves the presets owned by userID ordered by ID
func (r *PresetRepository) List(ctx context.Context, userID int64) ([]*models.Preset, error) {
	var rows []presetRow
	b := sq.Select(presetColumns...).From(models.PresetsTable).Where(sq.Eq{"UserId": userID}).OrderBy("Id")
	if err := list(ctx, r.db, &rows, b); err != nil {
		return nil, fmt.Errorf("failed to query presets: %w", err)
	}

	presets := make([]*models.Preset, len(rows))
	for i, row := range rows {
		presets[i] = row.model()
	}
	return presets, nil
}

// Update writes the name and settings of preset. The owner cannot change.
func (r *PresetRepository) Update(ctx context.Context, preset *models.Preset) error {
	if err := preset.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var owner int64
		err := get(ctx, tx, &owner, sq.Select("UserId").From(models.PresetsTable).Where(sq.Eq{"Id": preset.ID}))
		if isNoRows(err) {
			return notFound("preset", preset.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to query preset: %w", err)
		}
		if owner != preset.UserID {
			return models.Violation("Preset", "UserID", fmt.Sprintf("owner is user %d and cannot change", owner))
		}

		_, err = exec(ctx, tx, sq.Update(models.PresetsTable).
			Set("Name", preset.Name).
			SetMap(settingsMap(preset.Settings)).
			Where(sq.Eq{"Id": preset.ID}))
		if err != nil {
			return fmt.Errorf("failed to update preset: %w", err)
		}
		return nil
	})
}

// Delete removes the preset and its playlists, clearing any user's pointer to it.
func (r *PresetRepository) Delete(ctx context.Context, id int64) error {
	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := exec(ctx, tx, sq.Update(models.UsersTable).Set("CurrentPresetId", nil).Where(sq.Eq{"CurrentPresetId": id})); err != nil {
			return fmt.Errorf("failed to clear current preset: %w", err)
		}
		if _, err := exec(ctx, tx, sq.Delete(models.PlaylistsTable).Where(sq.Eq{"PresetId": id})); err != nil {
			return fmt.Errorf("failed to delete playlists: %w", err)
		}

		res, err := exec(ctx, tx, sq.Delete(models.PresetsTable).Where(sq.Eq{"Id": id}))
		if err != nil {
			return fmt.Errorf("failed to delete preset: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return notFound("preset", id)
		}
		return nil
	})
}
