// Package migrate evolves a SQLite store through an ordered, append-only history of reversible migrations.
//
// A [Migration] is identified by a timestamp-derived ID and carries forward (Up) and inverse (Down)
// [Step] lists built from the primitives in this package. A [Registry] orders the history and
// rejects duplicate IDs. The [Engine] records applied migrations in the schema_migrations ledger:
//
//   - [Engine.Plan] lists pending migrations in ascending order
//   - [Engine.Apply] and [Engine.Revert] run one migration and its ledger write in a single transaction
//   - [Engine.Up], [Engine.Down] and [Engine.To] move the store along the history under an exclusive lock
//
// The applied set is always a contiguous prefix of the registry. Applying out of order, or reverting
// anything but the most recent migration, fails with [ErrSequencingViolation]. Step failures are
// reported as [*Error] values naming the migration and step; the store is left as it was before the
// migration started.
//
// SQLite cannot alter most column properties in place, so structural changes rebuild the table:
// the live definition is read back with [Inspect], edited, recreated under a temporary name, filled
// from the old table and renamed over it, with its indexes and triggers restored. Foreign key
// enforcement is suspended for the duration of a migration and checked with PRAGMA foreign_key_check
// before commit.
package migrate
