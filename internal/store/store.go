// Package store is a SQLite backend for settings and journal entries.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/twrkit/internal/journal"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	uid   TEXT NOT NULL,
	key   TEXT NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (uid, key)
);`

// DB is a SQLite database holding settings and journal entries.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = memory",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Printf("[store] %s: %v", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db: db, path: path}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// GetString returns a setting, or "" if missing or unreadable.
func (d *DB) GetString(key string) string {
	var value string
	err := d.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Printf("[store] read setting %s: %v", key, err)
	}
	return value
}

// SetString stores a setting.
func (d *DB) SetString(key, value string) error {
	_, err := d.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Get loads an entry. Unknown uids return journal.ErrEntryNotFound.
func (d *DB) Get(uid string) (*journal.Entry, error) {
	rows, err := d.db.Query(`SELECT key, value FROM entries WHERE uid = ?`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}
	defer rows.Close()

	entry := journal.NewEntry(uid)
	found := false
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entry.Set(key, string(value))
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entry: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", uid, journal.ErrEntryNotFound)
	}
	return entry, nil
}

// Write replaces the stored metadata of e.
func (d *DB) Write(e *journal.Entry) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM entries WHERE uid = ?`, e.UID); err != nil {
		return fmt.Errorf("failed to clear entry: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO entries (uid, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, key := range e.Keys() {
		if _, err := stmt.Exec(e.UID, key, []byte(e.Metadata[key])); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entry: %w", err)
	}
	return nil
}

// List returns the stored entry uids.
func (d *DB) List() ([]string, error) {
	rows, err := d.db.Query(`SELECT DISTINCT uid FROM entries ORDER BY uid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan uid: %w", err)
		}
		uids = append(uids, uid)
	}
	return uids, rows.Err()
}
