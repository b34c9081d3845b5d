// Package sqlite provides SQLite-backed persistence for the plans service.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/plansocial/plans/internal/platform/storage/sqlitemigrate"
	"github.com/plansocial/plans/internal/services/plans/storage"
	"github.com/plansocial/plans/internal/services/plans/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for profiles, events,
// notifications, and the offline operation queue. It is the sole authority
// for record state; every membership mutation is an atomic delta so
// concurrent writers cannot overwrite each other's sets.
type Store struct {
	sqlDB *sql.DB

	watchMu  sync.Mutex
	watchSeq int
	watchers map[int]func(storage.Change)
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a plans SQLite store at the provided path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{
		sqlDB:    sqlDB,
		watchers: make(map[int]func(storage.Change)),
	}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Ping reports whether the database is reachable. The connectivity prober
// uses it to detect recovery after a transient failure.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return storage.ErrUnavailable
	}
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

// Watch registers a callback invoked after each committed write. The cancel
// function removes the registration; an in-flight callback may still run
// once after cancel returns.
func (s *Store) Watch(fn func(storage.Change)) (cancel func()) {
	if s == nil || fn == nil {
		return func() {}
	}
	s.watchMu.Lock()
	s.watchSeq++
	key := s.watchSeq
	s.watchers[key] = fn
	s.watchMu.Unlock()

	return func() {
		s.watchMu.Lock()
		delete(s.watchers, key)
		s.watchMu.Unlock()
	}
}

func (s *Store) notify(change storage.Change) {
	s.watchMu.Lock()
	fns := make([]func(storage.Change), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

// unavailable wraps a driver failure so callers can classify it as
// retryable. Constraint violations are mapped before reaching here.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

type scanner func(dest ...any) error
