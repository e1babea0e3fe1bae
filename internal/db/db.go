// Package db is the SQLite-backed heartbeat and user store. It
// exposes pre-aggregated duration primitives rather than raw rows:
// callers describe a filtered view with a HeartbeatFilter and ask
// for totals or per-dimension groupings.
package db

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DefaultIdleCutoff is the fallback gap cap for ping-to-duration
// summation when no cutoff is configured. See SetIdleCutoff.
const DefaultIdleCutoff = 2 * time.Minute

// DB manages a single write connection and a read-only pool.
type DB struct {
	writer *sql.DB
	reader *sql.DB
	mu     sync.Mutex // serializes writes

	idleMu     sync.RWMutex
	idleCutoff time.Duration

	locMu      sync.RWMutex
	defaultLoc *time.Location
}

// makeDSN builds a SQLite connection string with shared pragmas.
func makeDSN(path string, readOnly bool) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "ON")
	params.Set("_cache_size", "-64000")
	if readOnly {
		params.Set("mode", "ro")
	} else {
		params.Set("_synchronous", "NORMAL")
	}
	return path + "?" + params.Encode()
}

// Open creates or opens the heartbeat database at the given path,
// configuring WAL mode and separate writer/reader connections.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	writer, err := sql.Open("sqlite3", makeDSN(path, false))
	if err != nil {
		return nil, fmt.Errorf("opening writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	reader, err := sql.Open("sqlite3", makeDSN(path, true))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("opening reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	db := &DB{
		writer:     writer,
		reader:     reader,
		idleCutoff: DefaultIdleCutoff,
		defaultLoc: time.UTC,
	}
	if err := db.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return db, nil
}

// SetIdleCutoff sets the maximum gap between consecutive
// heartbeats that still counts as continuous activity.
func (db *DB) SetIdleCutoff(d time.Duration) {
	if d <= 0 {
		return
	}
	db.idleMu.Lock()
	defer db.idleMu.Unlock()
	db.idleCutoff = d
}

// IdleCutoff returns the configured gap cap.
func (db *DB) IdleCutoff() time.Duration {
	db.idleMu.RLock()
	defer db.idleMu.RUnlock()
	return db.idleCutoff
}

// SetDefaultLocation sets the timezone used for users who have
// none configured. UTC when never set.
func (db *DB) SetDefaultLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	db.locMu.Lock()
	defer db.locMu.Unlock()
	db.defaultLoc = loc
}

func (db *DB) defaultLocation() *time.Location {
	db.locMu.RLock()
	defer db.locMu.RUnlock()
	return db.defaultLoc
}

// ensureColumn adds a column if it doesn't already exist.
func (db *DB) ensureColumn(table, column, definition string) error {
	var count int
	err := db.writer.QueryRow(
		fmt.Sprintf(
			"SELECT count(*) FROM pragma_table_info('%s')"+
				" WHERE name='%s'",
			table, column,
		),
	).Scan(&count)
	if err != nil {
		return fmt.Errorf(
			"checking column %s.%s: %w", table, column, err,
		)
	}
	if count > 0 {
		return nil
	}
	_, err = db.writer.Exec(fmt.Sprintf(
		"ALTER TABLE %s ADD COLUMN %s %s",
		table, column, definition,
	))
	if err == nil {
		return nil
	}
	// ALTER TABLE may race with another process adding the same
	// column; re-check before reporting failure.
	var check int
	if checkErr := db.writer.QueryRow(
		fmt.Sprintf(
			"SELECT count(*) FROM pragma_table_info('%s')"+
				" WHERE name='%s'",
			table, column,
		),
	).Scan(&check); checkErr == nil && check > 0 {
		return nil
	}
	return err
}

func (db *DB) init() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.writer.Exec(schemaSQL); err != nil {
		return err
	}

	// Migration: entity column for databases created before
	// heartbeat identity included the edited file.
	if err := db.ensureColumn(
		"heartbeats", "entity", "TEXT NOT NULL DEFAULT ''",
	); err != nil {
		return fmt.Errorf("adding entity column: %w", err)
	}

	return nil
}

// Close closes both writer and reader connections.
func (db *DB) Close() error {
	return errors.Join(db.writer.Close(), db.reader.Close())
}

// Update executes fn within a write lock and transaction. The
// transaction is committed if fn returns nil, rolled back
// otherwise.
func (db *DB) Update(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.writer.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// inPlaceholders returns a "(?,?,...)" string and []any args for
// a slice of string values.
func inPlaceholders(values []string) (string, []any) {
	ph := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		ph[i] = "?"
		args[i] = v
	}
	return "(" + strings.Join(ph, ",") + ")", args
}

func joinAnd(preds []string) string {
	return strings.Join(preds, " AND ")
}
