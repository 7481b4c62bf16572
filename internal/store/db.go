package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

func Open() (*DB, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("finding home directory: %w", err)
	}
	return OpenAt(filepath.Join(home, ".config", "taskie"))
}

// OpenAt opens (and migrates) the database under the given directory.
// Split out from Open so tests can point at a temp dir.
func OpenAt(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dsn := filepath.Join(dir, "taskie.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db := &DB{conn}
	if err := db.ensureSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) ensureSchema() error {
	schema := []struct {
		name string
		stmt string
	}{
		{"accepted_entries", `CREATE TABLE IF NOT EXISTS accepted_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entry_id TEXT NOT NULL,
			task_id TEXT,
			title TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			minutes INTEGER NOT NULL,
			confidence REAL NOT NULL,
			tier TEXT NOT NULL,
			engine TEXT NOT NULL,
			reason TEXT,
			notified_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
		{"state", `CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`},
	}

	for _, s := range schema {
		if _, err := db.Exec(s.stmt); err != nil {
			return fmt.Errorf("creating %s table: %w", s.name, err)
		}
	}
	return nil
}

// GetState returns the stored value for key, or "" when unset.
func (db *DB) GetState(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (db *DB) SetState(key, value string) error {
	_, err := db.Exec(
		"INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}
