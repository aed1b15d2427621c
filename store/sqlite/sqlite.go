/*
Package sqlite provides a SQLite-backed implementation of the ledger storage
interfaces.

PURPOSE:
  Implements ledger.Repository (TxStore + QueryStore) and the report log
  using SQLite through database/sql.

INTERFACES IMPLEMENTED:
  ledger.TxStore:    Row reads/writes inside one transaction
  ledger.QueryStore: Joined listings for screens and reports
  report.Log:        Generated report ids

KEY TABLES:
  inventories:             Received lots, live stocks counter
  distributions:           Allocations per (lot, date, channel)
  recipients:              People, unique per (name, birthdate, barangay)
  recipient_distributions: Dispensings
  generated_reports:       Report ids handed out by the report service

CONSTRAINTS:
  CHECK (stocks >= 0 AND stocks <= quantity) on both stock tables. The
  ledger validates before writing, so a CHECK failure is a bug or a race
  and surfaces as ledger.ErrConcurrencyConflict.

CONCURRENCY:
  One connection and a sync.RWMutex. WithTx holds the write lock for the
  whole transaction; listings take the read lock.

DATES:
  Calendar dates are TEXT in YYYY-MM-DD so that comparisons and substr()
  month/year filters work on the raw column. Timestamps are RFC3339.

USAGE:
  store, err := sqlite.New("./data/stock.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  l := ledger.New(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/stock-ledger/ledger"
)

// Store implements ledger.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// driverName is sqlite3 with a fold() function that lowercases the same way
// ledger's in-memory filters do. SQLite's own lower() and LIKE fold ASCII only.
const driverName = "sqlite3_ledger"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open(driverName, dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS inventories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date_in TEXT NOT NULL,
		brand_name TEXT NOT NULL,
		generic_name TEXT NOT NULL,
		utils TEXT NOT NULL,
		lot_number TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		stocks INTEGER NOT NULL,
		expiration_date TEXT NOT NULL,
		stock_type TEXT NOT NULL DEFAULT 'LGU Procured',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (stocks >= 0 AND stocks <= quantity)
	);

	CREATE INDEX IF NOT EXISTS idx_inventories_lot_number
		ON inventories(lot_number);
	CREATE INDEX IF NOT EXISTS idx_inventories_expiration
		ON inventories(expiration_date);

	CREATE TABLE IF NOT EXISTS distributions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		inventory_id INTEGER NOT NULL REFERENCES inventories(id) ON DELETE CASCADE,
		date_distribute TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		stocks INTEGER NOT NULL,
		remarks TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (stocks >= 0 AND stocks <= quantity),
		UNIQUE (inventory_id, date_distribute, remarks)
	);

	CREATE INDEX IF NOT EXISTS idx_distributions_remarks
		ON distributions(remarks);

	CREATE TABLE IF NOT EXISTS recipients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		full_name TEXT NOT NULL,
		birthdate TEXT NOT NULL,
		barangay TEXT NOT NULL,
		gender TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (full_name, birthdate, barangay)
	);

	CREATE TABLE IF NOT EXISTS recipient_distributions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recipient_id INTEGER NOT NULL REFERENCES recipients(id) ON DELETE CASCADE,
		distribution_id INTEGER NOT NULL REFERENCES distributions(id) ON DELETE CASCADE,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		date_given TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dispensings_recipient
		ON recipient_distributions(recipient_id);
	CREATE INDEX IF NOT EXISTS idx_dispensings_distribution
		ON recipient_distributions(distribution_id);
	CREATE INDEX IF NOT EXISTS idx_dispensings_date
		ON recipient_distributions(date_given);

	CREATE TABLE IF NOT EXISTS generated_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL UNIQUE,
		report_type TEXT NOT NULL,
		title TEXT NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0,
		generated_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// HELPERS
// =============================================================================

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseDate(s string) ledger.Date {
	d, _ := ledger.ParseDate(s)
	return d
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}

func isUniqueConstraintError(err error) bool {
	return isConstraint(err, sqlite3.ErrConstraintUnique)
}

func isCheckConstraintError(err error) bool {
	return isConstraint(err, sqlite3.ErrConstraintCheck)
}

// expectOne turns a conditional write that matched nothing into a conflict.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		if isCheckConstraintError(err) {
			return ledger.ErrConcurrencyConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrConcurrencyConflict
	}
	return nil
}
