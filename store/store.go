// Package store provides SQLite-backed key/value slots for rover-cli.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages the SQLite database.
type Store struct {
	db *sql.DB
}

// Entry describes a stored slot without its value.
type Entry struct {
	Key       string    `json:"key"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a new Store with the given database path.
// Use ":memory:" for an in-memory database (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}

	// Initialize schema
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createSchema creates the database tables.
func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS slots (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get returns the value stored under key. ok is false when the key is absent.
func (s *Store) Get(key string) (value []byte, ok bool, err error) {
	err = s.db.QueryRow("SELECT value FROM slots WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get slot %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.Exec(
		`INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to put slot %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM slots WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored slot.
func (s *Store) Keys() ([]Entry, error) {
	rows, err := s.db.Query("SELECT key, length(value), updated_at FROM slots ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updatedUnix int64
		if err := rows.Scan(&e.Key, &e.Size, &updatedUnix); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		e.UpdatedAt = unixToTime(updatedUnix)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Slot returns a handle bound to a single key.
func (s *Store) Slot(key string) *Slot {
	return &Slot{store: s, key: key}
}

// Slot is one named entry in the store.
type Slot struct {
	store *Store
	key   string
}

// Key returns the slot name.
func (sl *Slot) Key() string {
	return sl.key
}

// Read returns the slot content, or nil when the slot is empty.
func (sl *Slot) Read() ([]byte, error) {
	value, ok, err := sl.store.Get(sl.key)
	if err != nil || !ok {
		return nil, err
	}
	return value, nil
}

// Write replaces the slot content.
func (sl *Slot) Write(value []byte) error {
	return sl.store.Put(sl.key, value)
}

// Remove empties the slot.
func (sl *Slot) Remove() error {
	return sl.store.Delete(sl.key)
}

// Helper to convert Unix timestamp to time.Time
func unixToTime(unix int64) time.Time {
	return time.Unix(unix, 0)
}
