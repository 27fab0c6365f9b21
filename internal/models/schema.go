package models

import "slices"

// Table names used by the store.
const (
	UsersTable     = "Users"
	PresetsTable   = "Presets"
	PlaylistsTable = "Playlists"
)

// SettingsPrefix namespaces the flattened [Settings] columns on the owner's table.
const SettingsPrefix = "Settings_"

// Column types. They are written to DDL verbatim, so introspection returns them unchanged.
const (
	TypeInteger = "INTEGER"
	TypeText    = "TEXT"
	TypeBoolean = "BOOLEAN"
)

// Foreign key actions.
const (
	Cascade  = "CASCADE"
	SetNull  = "SET NULL"
	NoAction = "NO ACTION"
)

// Schema is a declarative description of the tables in a store.
type Schema struct {
	Tables []Table
}

// Table returns the table named name.
func (s Schema) Table(name string) (Table, bool) {
	i := slices.IndexFunc(s.Tables, func(t Table) bool { return t.Name == name })
	if i < 0 {
		return Table{}, false
	}
	return s.Tables[i], true
}

// Table describes one physical table.
type Table struct {
	Name          string
	Columns       []Column
	ForeignKeys   []ForeignKey
	Indexes       []Index
	Triggers      []string
	Discriminator *Discriminator
}

// Column returns the column named name.
func (t Table) Column(name string) (Column, bool) {
	i := slices.IndexFunc(t.Columns, func(c Column) bool { return c.Name == name })
	if i < 0 {
		return Column{}, false
	}
	return t.Columns[i], true
}

// HasColumn reports whether the table defines name.
func (t Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ForeignKey returns the foreign key declared on column.
func (t Table) ForeignKey(column string) (ForeignKey, bool) {
	i := slices.IndexFunc(t.ForeignKeys, func(fk ForeignKey) bool { return fk.Column == column })
	if i < 0 {
		return ForeignKey{}, false
	}
	return t.ForeignKeys[i], true
}

// Column describes a column. Default holds a SQL literal such as "0" or "''"; nil means no default.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	Default    *string
	PrimaryKey bool
}

// ForeignKey references RefTable.RefColumn from Column.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  string
}

// Index is a named secondary index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Discriminator names the column selecting the variant in a table shared by a hierarchy.
type Discriminator struct {
	Column string
	Kinds  []PlaylistKind
}

// Literal returns a pointer to a SQL default literal.
func Literal(s string) *string {
	return &s
}

// SettingsColumn returns the flattened column name of a [Settings] field.
func SettingsColumn(field string) string {
	return SettingsPrefix + field
}

// IDColumn is the integer primary key every table starts with.
func IDColumn() Column {
	return Column{Name: "Id", Type: TypeInteger, PrimaryKey: true}
}

// Triggers guarding the Playlists discriminator.
const (
	PlaylistTypeImmutableTrigger = "TR_Playlists_PlaylistType_Immutable"
	PlaylistTypeValidTrigger     = "TR_Playlists_PlaylistType_Valid"
)

// CurrentSchema describes the store after every migration has been applied.
func CurrentSchema() Schema {
	return Schema{Tables: []Table{
		{
			Name: UsersTable,
			Columns: []Column{
				IDColumn(),
				{Name: "CurrentPresetId", Type: TypeInteger, Nullable: true},
			},
			ForeignKeys: []ForeignKey{
				{Column: "CurrentPresetId", RefTable: PresetsTable, RefColumn: "Id", OnDelete: SetNull},
			},
			Indexes: []Index{{Name: "IX_Users_CurrentPresetId", Columns: []string{"CurrentPresetId"}}},
		},
		{
			Name: PresetsTable,
			Columns: []Column{
				IDColumn(),
				{Name: "Name", Type: TypeText},
				{Name: "UserId", Type: TypeInteger},
				{Name: SettingsColumn("IncludeLikedTracks"), Type: TypeBoolean, Nullable: true},
				{Name: SettingsColumn("PlaylistSize"), Type: TypeInteger, Default: Literal("20")},
				{Name: SettingsColumn("RecommendationsEnabled"), Type: TypeBoolean, Default: Literal("0")},
			},
			ForeignKeys: []ForeignKey{
				{Column: "UserId", RefTable: UsersTable, RefColumn: "Id", OnDelete: Cascade},
			},
			Indexes: []Index{{Name: "IX_Presets_UserId", Columns: []string{"UserId"}}},
		},
		{
			Name: PlaylistsTable,
			Columns: []Column{
				IDColumn(),
				{Name: "PlaylistType", Type: TypeInteger},
				{Name: "Url", Type: TypeText},
				{Name: "Disabled", Type: TypeBoolean, Default: Literal("0")},
				{Name: "Overwrite", Type: TypeBoolean, Nullable: true},
				{Name: "PresetId", Type: TypeInteger},
				{Name: "Name", Type: TypeText, Default: Literal("''")},
			},
			ForeignKeys: []ForeignKey{
				{Column: "PresetId", RefTable: PresetsTable, RefColumn: "Id", OnDelete: Cascade},
			},
			Indexes:       []Index{{Name: "IX_Playlists_PresetId", Columns: []string{"PresetId"}}},
			Triggers:      []string{PlaylistTypeImmutableTrigger, PlaylistTypeValidTrigger},
			Discriminator: &Discriminator{Column: "PlaylistType", Kinds: PlaylistKinds()},
		},
	}}
}
