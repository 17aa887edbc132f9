// Package sqlite provides the sqlite-backed storage adapter. Serial
// sub-stores append JSON rows; the reserved memory sub maps to a
// one-row-per-key table replaced wholesale on save.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mullbot/mull/pkg/adapter"
	"github.com/mullbot/mull/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS memory (
	sub  TEXT PRIMARY KEY,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS store (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	sub        TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_store_sub ON store(sub);
`

// Store implements adapter.Storage on a sqlite database file.
type Store struct {
	path string
	db   *sql.DB
}

// New creates a store for a database path. ":memory:" works for tests.
func New(path string) *Store {
	return &Store{path: path}
}

// Name returns the adapter name.
func (s *Store) Name() string { return "sqlite" }

// Start opens the database and ensures the schema.
func (s *Store) Start(ctx context.Context) error {
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", s.path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping sqlite %s: %w", s.path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("create schema: %w", err)
	}
	s.db = db
	logger.InfoCF("storage", "sqlite ready", map[string]interface{}{"path": s.path})
	return nil
}

// Shutdown closes the database.
func (s *Store) Shutdown(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Keep appends a JSON row to a serial sub-store.
func (s *Store) Keep(sub string, data interface{}) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("keep %s: %w", sub, err)
	}
	if _, err := s.db.Exec(`INSERT INTO store (sub, data) VALUES (?, ?)`, sub, string(encoded)); err != nil {
		return fmt.Errorf("keep %s: %w", sub, err)
	}
	return nil
}

// Find returns records matching params by shallow key equality, in
// insertion order.
func (s *Store) Find(sub string, params map[string]interface{}) ([]map[string]interface{}, error) {
	rows, err := s.db.Query(`SELECT data FROM store WHERE sub = ? ORDER BY id`, sub)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", sub, err)
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("find %s: %w", sub, err)
		}
		record := make(map[string]interface{})
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		if adapter.MatchParams(record, params) {
			out = append(out, record)
		}
	}
	return out, rows.Err()
}

// FindOne returns the first matching record, or nil.
func (s *Store) FindOne(sub string, params map[string]interface{}) (map[string]interface{}, error) {
	records, err := s.Find(sub, params)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Lose deletes matching records from a serial sub-store.
func (s *Store) Lose(sub string, params map[string]interface{}) error {
	rows, err := s.db.Query(`SELECT id, data FROM store WHERE sub = ?`, sub)
	if err != nil {
		return fmt.Errorf("lose %s: %w", sub, err)
	}
	var doomed []int64
	for rows.Next() {
		var rowID int64
		var raw string
		if err := rows.Scan(&rowID, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("lose %s: %w", sub, err)
		}
		record := make(map[string]interface{})
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		if adapter.MatchParams(record, params) {
			doomed = append(doomed, rowID)
		}
	}
	rows.Close()
	for _, rowID := range doomed {
		if _, err := s.db.Exec(`DELETE FROM store WHERE id = ?`, rowID); err != nil {
			return fmt.Errorf("lose %s: %w", sub, err)
		}
	}
	return nil
}

// SaveMemory replaces the memory table with the given snapshot.
func (s *Store) SaveMemory(data map[string]interface{}) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM memory`); err != nil {
		tx.Rollback()
		return fmt.Errorf("save memory: %w", err)
	}
	for sub, payload := range data {
		encoded, err := json.Marshal(payload)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("save memory %s: %w", sub, err)
		}
		if _, err := tx.Exec(`INSERT INTO memory (sub, data) VALUES (?, ?)`, sub, string(encoded)); err != nil {
			tx.Rollback()
			return fmt.Errorf("save memory %s: %w", sub, err)
		}
	}
	return tx.Commit()
}

// LoadMemory reads the memory table back into a map.
func (s *Store) LoadMemory() (map[string]interface{}, error) {
	rows, err := s.db.Query(`SELECT sub, data FROM memory`)
	if err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	defer rows.Close()

	out := make(map[string]interface{})
	for rows.Next() {
		var sub, raw string
		if err := rows.Scan(&sub, &raw); err != nil {
			return nil, fmt.Errorf("load memory: %w", err)
		}
		var payload interface{}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			logger.WarnCF("storage", "skipping unreadable memory sub", map[string]interface{}{"sub": sub})
			continue
		}
		out[sub] = payload
	}
	return out, rows.Err()
}

// Compile-time verification
var _ adapter.Storage = (*Store)(nil)
