package migrate

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
)

// IDLayout is the timestamp layout migration IDs are derived from.
const IDLayout = "20060102150405"

// Direction selects the forward or inverse transformation of a migration.
type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "unknown"
	}
}

// State is the state of a migration against a particular store.
type State uint

const (
	// Pending is for a migration not yet applied.
	Pending State = iota
	// Applied is for a migration recorded in the ledger.
	Applied
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Applied:
		return "applied"
	default:
		return "unknown"
	}
}

// Migration is one immutable entry in the schema history.
//
// Lossy documents the data a revert cannot restore. It does not affect execution.
type Migration struct {
	ID    int64
	Name  string
	Up    []Step
	Down  []Step
	Lossy string
}

// Key renders the migration as "<id>_<name>".
func (m Migration) Key() string {
	return fmt.Sprintf("%d_%s", m.ID, m.Name)
}

// Timestamp returns the authoring time encoded in the ID.
func (m Migration) Timestamp() (time.Time, error) {
	return time.Parse(IDLayout, strconv.FormatInt(m.ID, 10))
}

// Steps returns the steps run in direction d.
func (m Migration) Steps(d Direction) []Step {
	if d == DirectionDown {
		return m.Down
	}
	return m.Up
}

func (m Migration) validate() error {
	var result *multierror.Error
	if _, err := m.Timestamp(); err != nil {
		result = multierror.Append(result, fmt.Errorf("%w: %s: id is not a %s timestamp", ErrInvalidMigration, m.Key(), IDLayout))
	}
	if m.Name == "" {
		result = multierror.Append(result, fmt.Errorf("%w: %d: name is required", ErrInvalidMigration, m.ID))
	}
	if len(m.Up) == 0 {
		result = multierror.Append(result, fmt.Errorf("%w: %s: no up steps", ErrInvalidMigration, m.Key()))
	}
	return result.ErrorOrNil()
}

// Registry is the ordered migration history.
type Registry struct {
	migrations []Migration
	index      map[int64]int
}

// NewRegistry orders migrations by ID.
//
// Two migrations sharing an ID fail with [ErrDuplicateMigration]; malformed ones fail with
// [ErrInvalidMigration]. Every problem found is reported.
func NewRegistry(migrations ...Migration) (*Registry, error) {
	var result *multierror.Error
	for _, m := range migrations {
		if err := m.validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	dupes := lo.FindDuplicatesBy(migrations, func(m Migration) int64 { return m.ID })
	for _, d := range dupes {
		names := lo.FilterMap(migrations, func(m Migration, _ int) (string, bool) { return m.Name, m.ID == d.ID })
		result = multierror.Append(result, fmt.Errorf("%w: %d used by %v", ErrDuplicateMigration, d.ID, names))
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	index := make(map[int64]int, len(sorted))
	for i, m := range sorted {
		index[m.ID] = i
	}

	return &Registry{migrations: sorted, index: index}, nil
}

// Migrations returns the history in ascending ID order.
func (r *Registry) Migrations() []Migration {
	return slices.Clone(r.migrations)
}

// Len returns the number of registered migrations.
func (r *Registry) Len() int {
	return len(r.migrations)
}

// Get returns the migration with the given ID.
func (r *Registry) Get(id int64) (Migration, bool) {
	i, ok := r.index[id]
	if !ok {
		return Migration{}, false
	}
	return r.migrations[i], true
}

// Position returns the zero-based position of id in the history, or -1.
func (r *Registry) Position(id int64) int {
	if i, ok := r.index[id]; ok {
		return i
	}
	return -1
}

// IDs returns every registered ID in order.
func (r *Registry) IDs() []int64 {
	return lo.Map(r.migrations, func(m Migration, _ int) int64 { return m.ID })
}
