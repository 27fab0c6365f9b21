// Package repositories implements SQLite persistence for users, presets and playlists.
//
// Queries are built with squirrel and scanned with sqlx. Writes that take more than one statement
// run inside [WithTx], so they either fully happen or not at all.
//
// Key Implementations:
//   - [UserRepository] : users and their current preset pointer
//   - [PresetRepository] : presets with their flattened settings
//   - [PlaylistRepository] : every playlist variant in the shared Playlists table
//
// Deletes cascade explicitly down the ownership graph (user, presets, playlists) inside one
// transaction, in addition to the ON DELETE actions declared in the schema. Missing rows are
// reported with errors wrapping [shared.ErrNotFound]; writes that would break ownership rules wrap
// [models.ErrModelViolation].
package repositories
