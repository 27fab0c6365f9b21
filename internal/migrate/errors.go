package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/playsync/internal/models"
)

var (
	// ErrSequencingViolation reports a migration applied or reverted out of order,
	// or a ledger that is not a prefix of the registry.
	ErrSequencingViolation = errors.New("sequencing violation")

	// ErrBackfillRequired reports a nullability tightening with NULL rows and no backfill value.
	ErrBackfillRequired = errors.New("backfill required")

	// ErrTransformFailure reports a step the store rejected. The native driver error stays reachable
	// through [errors.As].
	ErrTransformFailure = errors.New("transform failure")

	// ErrModelViolation reports a step whose definition contradicts the data model.
	ErrModelViolation = models.ErrModelViolation

	// ErrDuplicateMigration reports two registered migrations sharing an ID.
	ErrDuplicateMigration = errors.New("duplicate migration id")

	// ErrInvalidMigration reports a malformed migration definition.
	ErrInvalidMigration = errors.New("invalid migration")

	// ErrUnknownMigration reports an ID missing from the registry.
	ErrUnknownMigration = errors.New("unknown migration")

	// ErrIrreversible reports a revert of a migration without Down steps.
	ErrIrreversible = errors.New("migration has no down steps")

	// ErrLockTimeout reports that the migration lock could not be acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for migration lock")
)

// Error describes a failed migration run.
//
// Kind is one of the sentinel errors above; Err is the underlying cause. Both are matched by
// [errors.Is] and [errors.As].
type Error struct {
	MigrationID int64
	Name        string
	Direction   Direction
	Step        int // 1-based, 0 when the failure precedes the steps
	StepDesc    string
	Kind        error
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "migration %d_%s (%s)", e.MigrationID, e.Name, e.Direction)
	if e.Step > 0 {
		fmt.Fprintf(&b, " step %d %q", e.Step, e.StepDesc)
	}
	if e.Kind != nil && !errors.Is(e.Err, e.Kind) {
		fmt.Fprintf(&b, ": %v", e.Kind)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newError(m Migration, dir Direction, kind, err error) *Error {
	return &Error{MigrationID: m.ID, Name: m.Name, Direction: dir, Kind: kind, Err: err}
}

func stepError(m Migration, dir Direction, idx int, s Step, err error) *Error {
	e := newError(m, dir, classify(err), err)
	e.Step = idx + 1
	e.StepDesc = s.Describe()
	return e
}

// classify picks the error kind for a failed step.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrBackfillRequired):
		return ErrBackfillRequired
	case errors.Is(err, ErrModelViolation):
		return ErrModelViolation
	case errors.Is(err, ErrSequencingViolation):
		return ErrSequencingViolation
	default:
		return ErrTransformFailure
	}
}
