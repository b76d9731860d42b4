// Package store provides the embedded SQLite backing store shared by data
// tables and their metadata.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Querier is the row-storage surface the engine runs statements against.
// Both *sql.DB and *sql.Tx satisfy it.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Options tunes the SQLite connections.
type Options struct {
	// BusyTimeout is how long a connection waits on a locked database
	BusyTimeout time.Duration

	// ReaderPoolSize is the number of concurrent read connections
	ReaderPoolSize int
}

// DefaultOptions returns the defaults used when Options fields are zero.
func DefaultOptions() Options {
	return Options{
		BusyTimeout:    5 * time.Second,
		ReaderPoolSize: 4,
	}
}

// SQLite owns one writer connection and a pool of readers over the same file.
// All writes go through WithTx, which serializes them.
type SQLite struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)
}

// Open opens (creating if needed) the database at dbPath and initializes the
// metadata tables.
func Open(dbPath string, opts Options) (*SQLite, error) {
	defaults := DefaultOptions()
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaults.BusyTimeout
	}
	if opts.ReaderPoolSize <= 0 {
		opts.ReaderPoolSize = defaults.ReaderPoolSize
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", dbPath, opts.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db, dbPath: dbPath}

	// Initialize schema before any reader opens the file
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to initialize schema: %w", err)
	}

	readDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(opts.ReaderPoolSize)
	readDB.SetMaxIdleConns(opts.ReaderPoolSize)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	s.readDB = readDB

	return s, nil
}

// initSchema creates all metadata tables and indexes.
func (s *SQLite) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.dbPath }

// Writer returns the single write connection. Writes issued on it outside
// WithTx are not serialized against transactions.
func (s *SQLite) Writer() Querier { return s.db }

// Reader returns the read pool. Readers only ever observe committed state.
func (s *SQLite) Reader() Querier { return s.readDB }

// WithTx runs fn inside one write transaction. The transaction commits when
// fn returns nil and rolls back otherwise, so fn's changes are all-or-nothing.
func (s *SQLite) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes both connection pools.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []string
	if s.readDB != nil {
		if err := s.readDB.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("store: close: %s", strings.Join(errs, "; "))
	}
	log.Printf("store: closed %s", s.dbPath)
	return nil
}

// QuoteIdent quotes an SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIdents quotes and comma-joins identifiers.
func QuoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// TableColumns enumerates the physical columns of table by preparing a
// single-row select and reading its result columns.
func TableColumns(ctx context.Context, q Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT * FROM "+QuoteIdent(table)+" LIMIT 1")
	if err != nil {
		return nil, fmt.Errorf("store: failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("store: failed to read columns of %s: %w", table, err)
	}
	return cols, nil
}

// TableExists reports whether a table named table exists.
func TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: failed to check table %s: %w", table, err)
	}
	return n > 0, nil
}
