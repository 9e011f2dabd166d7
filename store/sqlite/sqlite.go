/*
Package sqlite provides the SQLite-backed implementation of the core stores.

PURPOSE:
  Implements core.TxStore (leave types, balances, ledger entries, requests,
  pass slips, approvals, workflow configs) plus the collaborators the
  services consume at their boundary: core.EmployeeDirectory,
  core.HolidaySource and core.AuditLogger.

APPEND-ONLY ENFORCEMENT:
  leave_credits has triggers that abort any UPDATE or DELETE. Corrections
  are new entries (adjustments, reversals).

LOCKING:
  Connections are opened with _txlock=immediate, so every transaction takes
  the database write lock when it begins and holds it until commit or
  rollback. That serializes writers; readers in WAL mode are not blocked.
  A writer that cannot get the lock within the busy timeout fails with
  core.ErrConcurrency.

  Inside WithTx, every statement must go through the Store handed to the
  callback. An in-memory database has a single connection, and touching the
  root Store from inside a transaction would wait on itself.

MIGRATIONS:
  Versioned SQL files under migrations/ are embedded and applied with goose
  on Open.

USAGE:
  store, err := sqlite.New("./data/hr.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - core/store.go: interface definitions
  - errors.go: driver error mapping
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

// DefaultBusyTimeout is how long a writer waits for the database lock.
const DefaultBusyTimeout = 5 * time.Second

type Options struct {
	BusyTimeout time.Duration
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements core.Store over a querier. The root Store and every
// transaction share these methods.
type conn struct {
	q querier
}

// Store implements core.TxStore and the boundary interfaces.
type Store struct {
	conn
	db *sql.DB
}

var (
	_ core.TxStore           = (*Store)(nil)
	_ core.Store             = (*conn)(nil)
	_ core.EmployeeDirectory = (*Store)(nil)
	_ core.HolidaySource     = (*Store)(nil)
	_ core.AuditLogger       = (*Store)(nil)
)

// New opens (and migrates) the database at dbPath with default options.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(dbPath, Options{})
}

func Open(dbPath string, opts Options) (*Store, error) {
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = DefaultBusyTimeout
	}
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate",
		dbPath, busy.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := NewWithDB(db)
	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewWithDB wraps an existing handle without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{conn: conn{q: db}, db: db}
}

// Migrate applies every pending migration.
func (s *Store) Migrate() error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(s.db, "migrations")
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// TRANSACTIONS (core.TxStore)
// =============================================================================

// WithTx runs fn inside one transaction. Errors from fn roll everything
// back; lock timeouts come back as core.ErrConcurrency.
func (s *Store) WithTx(ctx context.Context, fn func(core.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapError(err))
	}
	defer tx.Rollback()

	if err := fn(&conn{q: tx}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapError(err))
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func formatDate(t time.Time) string {
	return t.Format(core.DateLayout)
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(core.DateLayout, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rowsAffectedOrConflict turns a zero-row conditional update into
// core.ErrStateConflict.
func rowsAffectedOrConflict(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrStateConflict
	}
	return nil
}
