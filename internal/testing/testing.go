// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/playsync/internal/migrate"
	"github.com/desertthunder/playsync/internal/migrations"
	"github.com/desertthunder/playsync/internal/shared"
)

// NewDatabase opens an empty in-memory store closed at the end of the test.
func NewDatabase(t testing.TB) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(shared.MemoryPath)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewFileDatabase returns a path to a fresh database file inside the test's temp dir and
// an open handle to it. Separate handles to the same path behave like separate processes.
func NewFileDatabase(t testing.TB) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playsync.db")
	return OpenDatabase(t, path), path
}

// OpenDatabase opens the store at path and closes it at the end of the test.
func OpenDatabase(t testing.TB, path string) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(path)
	if err != nil {
		t.Fatalf("Failed to open database %s: %v", path, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewEngine returns an engine over the full migration history.
func NewEngine(t testing.TB, db *sql.DB, opts ...migrate.Option) *migrate.Engine {
	t.Helper()
	registry, err := migrations.Registry()
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	return migrate.New(db, registry, opts...)
}

// NewMigratedDatabase opens an in-memory store with every migration applied.
func NewMigratedDatabase(t testing.TB) *sql.DB {
	t.Helper()
	db := NewDatabase(t)
	if _, err := NewEngine(t, db).Up(context.Background()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// MustExec runs a statement and fails the test on error.
func MustExec(t testing.TB, db *sql.DB, query string, args ...any) sql.Result {
	t.Helper()
	res, err := db.Exec(query, args...)
	if err != nil {
		t.Fatalf("Failed to exec %q: %v", query, err)
	}
	return res
}

// MustCount returns the single integer produced by query.
func MustCount(t testing.TB, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count with %q: %v", query, err)
	}
	return n
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
