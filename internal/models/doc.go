// Package models defines the persistent entities of the playlist sync store and the declarative
// description of the schema that stores them.
//
// The package contains two categories of types:
//
// 1. Entities: the rows the repositories read and write
//   - [User] : account root, optionally pointing at its current [Preset]
//   - [Preset] : named configuration bundle owned by a [User], embedding [Settings]
//   - [Playlist] : a tagged record whose [PlaylistKind] selects Source, History, Target or TargetHistory
//
// 2. Schema description: [Schema], [Table], [Column], [ForeignKey] and [Index]
//   - [CurrentSchema] is the shape the migration history converges the physical store toward
//   - [Settings] is flattened onto its owner's table with the [SettingsPrefix] column prefix
//   - every Playlist variant shares one table keyed by the PlaylistType discriminator column
//
// Constructors and Validate methods report bad entity data with errors matching [ErrModelViolation].
package models
