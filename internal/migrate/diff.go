package migrate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/samber/lo"
)

// Drift is one difference between a wanted and a live schema.
type Drift struct {
	Table   string
	Object  string // column, index or trigger name; empty for table-level drift
	Message string
}

func (d Drift) String() string {
	if d.Object == "" {
		return fmt.Sprintf("%s: %s", d.Table, d.Message)
	}
	return fmt.Sprintf("%s.%s: %s", d.Table, d.Object, d.Message)
}

// Diff lists how got differs from want. Column, index and trigger order are ignored, as are the
// engine's bookkeeping tables. An empty result means the schemas are structurally identical.
func Diff(want, got models.Schema) []Drift {
	var drift []Drift

	wantTables := lo.KeyBy(userTables(want), func(t models.Table) string { return t.Name })
	gotTables := lo.KeyBy(userTables(got), func(t models.Table) string { return t.Name })

	for _, name := range sortedKeys(wantTables) {
		g, ok := gotTables[name]
		if !ok {
			drift = append(drift, Drift{Table: name, Message: "table is missing"})
			continue
		}
		drift = append(drift, diffTable(wantTables[name], g)...)
	}
	for _, name := range sortedKeys(gotTables) {
		if _, ok := wantTables[name]; !ok {
			drift = append(drift, Drift{Table: name, Message: "unexpected table"})
		}
	}
	return drift
}

func userTables(s models.Schema) []models.Table {
	return lo.Filter(s.Tables, func(t models.Table, _ int) bool {
		return t.Name != ledgerTable && t.Name != lockTable && !strings.HasPrefix(t.Name, "sqlite_")
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}

func diffTable(want, got models.Table) []Drift {
	var drift []Drift
	add := func(object, format string, args ...any) {
		drift = append(drift, Drift{Table: want.Name, Object: object, Message: fmt.Sprintf(format, args...)})
	}

	wantCols := lo.KeyBy(want.Columns, func(c models.Column) string { return c.Name })
	gotCols := lo.KeyBy(got.Columns, func(c models.Column) string { return c.Name })
	for _, name := range sortedKeys(wantCols) {
		w := wantCols[name]
		g, ok := gotCols[name]
		if !ok {
			add(name, "column is missing")
			continue
		}
		if !strings.EqualFold(w.Type, g.Type) {
			add(name, "type is %s, want %s", g.Type, w.Type)
		}
		if w.PrimaryKey != g.PrimaryKey {
			add(name, "primary key is %t, want %t", g.PrimaryKey, w.PrimaryKey)
		}
		if !w.PrimaryKey && w.Nullable != g.Nullable {
			add(name, "nullable is %t, want %t", g.Nullable, w.Nullable)
		}
		if wd, gd := literal(w.Default), literal(g.Default); wd != gd {
			add(name, "default is %s, want %s", gd, wd)
		}
	}
	for _, name := range sortedKeys(gotCols) {
		if _, ok := wantCols[name]; !ok {
			add(name, "unexpected column")
		}
	}

	wantFKs := lo.KeyBy(want.ForeignKeys, func(fk models.ForeignKey) string { return fk.Column })
	gotFKs := lo.KeyBy(got.ForeignKeys, func(fk models.ForeignKey) string { return fk.Column })
	for _, col := range sortedKeys(wantFKs) {
		w := wantFKs[col]
		g, ok := gotFKs[col]
		if !ok {
			add(col, "foreign key to %s is missing", w.RefTable)
			continue
		}
		if w.RefTable != g.RefTable || w.RefColumn != g.RefColumn {
			add(col, "references %s.%s, want %s.%s", g.RefTable, g.RefColumn, w.RefTable, w.RefColumn)
		}
		if onDelete(w.OnDelete) != onDelete(g.OnDelete) {
			add(col, "on delete %s, want %s", onDelete(g.OnDelete), onDelete(w.OnDelete))
		}
	}
	for _, col := range sortedKeys(gotFKs) {
		if _, ok := wantFKs[col]; !ok {
			add(col, "unexpected foreign key to %s", gotFKs[col].RefTable)
		}
	}

	wantIdx := lo.KeyBy(want.Indexes, func(i models.Index) string { return i.Name })
	gotIdx := lo.KeyBy(got.Indexes, func(i models.Index) string { return i.Name })
	for _, name := range sortedKeys(wantIdx) {
		w := wantIdx[name]
		g, ok := gotIdx[name]
		if !ok {
			add(name, "index is missing")
			continue
		}
		if !slices.Equal(w.Columns, g.Columns) {
			add(name, "index covers %v, want %v", g.Columns, w.Columns)
		}
		if w.Unique != g.Unique {
			add(name, "unique is %t, want %t", g.Unique, w.Unique)
		}
	}
	for _, name := range sortedKeys(gotIdx) {
		if _, ok := wantIdx[name]; !ok {
			add(name, "unexpected index")
		}
	}

	missing, extra := lo.Difference(want.Triggers, got.Triggers)
	for _, name := range missing {
		add(name, "trigger is missing")
	}
	for _, name := range extra {
		add(name, "unexpected trigger")
	}

	return drift
}

func literal(s *string) string {
	if s == nil {
		return "NULL"
	}
	return *s
}

func onDelete(action string) string {
	if action == "" {
		return models.NoAction
	}
	return strings.ToUpper(action)
}
