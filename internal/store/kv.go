// Package store persists application state as a handful of independent
// key-value slots. Each slot is read once at startup and rewritten in full on
// every change; there is no versioning or partial write.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Slot names. Each owns one whole record: the user, the UI theme and the
// session collection.
const (
	SlotUser     = "user"
	SlotUI       = "ui"
	SlotSessions = "sessions"
)

// KV is a sqlite-backed key-value store.
type KV struct {
	db *sql.DB
}

// Open creates (or opens) the store at path. ":memory:" works for tests.
func Open(path string) (*KV, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// The store is written from the single request goroutine handling a
	// mutation; one connection keeps in-memory databases coherent too.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vault (
		slot  TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}

	return &KV{db: db}, nil
}

// Get reads a slot. The second return is false when the slot was never written.
func (s *KV) Get(slot string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM vault WHERE slot = ?`, slot).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read slot %s: %w", slot, err)
	}

	decoded, err := decompressPayload(value)
	if err != nil {
		return nil, false, fmt.Errorf("decode slot %s: %w", slot, err)
	}
	return decoded, true, nil
}

// Put overwrites a slot in full.
func (s *KV) Put(slot string, value []byte) error {
	encoded, err := compressPayload(value)
	if err != nil {
		return fmt.Errorf("encode slot %s: %w", slot, err)
	}

	if _, err := s.db.Exec(
		`INSERT INTO vault (slot, value) VALUES (?, ?)
		 ON CONFLICT(slot) DO UPDATE SET value = excluded.value`,
		slot, encoded,
	); err != nil {
		return fmt.Errorf("write slot %s: %w", slot, err)
	}
	return nil
}

// Close releases the database handle.
func (s *KV) Close() error {
	return s.db.Close()
}
