package repositories

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/jmoiron/sqlx"
)

type userRow struct {
	ID              int64         `db:"Id"`
	CurrentPresetID sql.NullInt64 `db:"CurrentPresetId"`
}

func (r userRow) model() *models.User {
	return &models.User{ID: r.ID, CurrentPresetID: int64Ptr(r.CurrentPresetID)}
}

var userColumns = []string{"Id", "CurrentPresetId"}

// UserRepository persists [models.User] rows.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: sqlx.NewDb(db, driverName)}
}

// Create inserts user. A zero ID is assigned by the store and written back.
//
// A new user cannot point at a preset yet; use [UserRepository.SetCurrentPreset] once it owns one.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if user.CurrentPresetID != nil {
		return fmt.Errorf("validation failed: %w",
			models.Violation("User", "CurrentPresetID", "must be set after the user owns a preset"))
	}

	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		b := sq.Insert(models.UsersTable).Columns("CurrentPresetId").Values(nil)
		if user.ID != 0 {
			b = sq.Insert(models.UsersTable).Columns("Id", "CurrentPresetId").Values(user.ID, nil)
		}

		res, err := exec(ctx, tx, b)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read user id: %w", err)
		}
		user.ID = id
		return nil
	})
}

// Get retrieves a user by ID
func (r *UserRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	var row userRow
	err := get(ctx, r.db, &row, sq.Select(userColumns...).From(models.UsersTable).Where(sq.Eq{"Id": id}))
	if isNoRows(err) {
		return nil, notFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return row.model(), nil
}

// List retrieves every user ordered by ID
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	var rows []userRow
	if err := list(ctx, r.db, &rows, sq.Select(userColumns...).From(models.UsersTable).OrderBy("Id")); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	users := make([]*models.User, len(rows))
	for i, row := range rows {
		users[i] = row.model()
	}
	return users, nil
}

// SetCurrentPreset points the user at one of their presets, or clears the pointer when presetID is nil.
//
// A preset that does not exist or belongs to another user is a [models.ErrModelViolation].
func (r *UserRepository) SetCurrentPreset(ctx context.Context, userID int64, presetID *int64) error {
	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		ok, err := exists(ctx, tx, models.UsersTable, userID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("user", userID)
		}

		if presetID != nil {
			var owner int64
			err := get(ctx, tx, &owner, sq.Select("UserId").From(models.PresetsTable).Where(sq.Eq{"Id": *presetID}))
			if isNoRows(err) {
				return models.Violation("User", "CurrentPresetID", fmt.Sprintf("preset %d does not exist", *presetID))
			}
			if err != nil {
				return fmt.Errorf("failed to query preset owner: %w", err)
			}
			if owner != userID {
				return models.Violation("User", "CurrentPresetID", fmt.Sprintf("preset %d belongs to user %d", *presetID, owner))
			}
		}

		_, err = exec(ctx, tx, sq.Update(models.UsersTable).
			Set("CurrentPresetId", nullInt64(presetID)).
			Where(sq.Eq{"Id": userID}))
		if err != nil {
			return fmt.Errorf("failed to update current preset: %w", err)
		}
		return nil
	})
}

// Delete removes the user with every preset it owns and every playlist of those presets.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		owned := sq.Select("Id").From(models.PresetsTable).Where(sq.Eq{"UserId": id})

		if _, err := exec(ctx, tx, sq.Delete(models.PlaylistsTable).Where(sq.Expr("PresetId IN (?)", owned))); err != nil {
			return fmt.Errorf("failed to delete playlists: %w", err)
		}
		if _, err := exec(ctx, tx, sq.Update(models.UsersTable).Set("CurrentPresetId", nil).Where(sq.Eq{"Id": id})); err != nil {
			return fmt.Errorf("failed to clear current preset: %w", err)
		}
		if _, err := exec(ctx, tx, sq.Delete(models.PresetsTable).Where(sq.Eq{"UserId": id})); err != nil {
			return fmt.Errorf("failed to delete presets: %w", err)
		}

		res, err := exec(ctx, tx, sq.Delete(models.UsersTable).Where(sq.Eq{"Id": id}))
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return notFound("user", id)
		}
		return nil
	})
}
