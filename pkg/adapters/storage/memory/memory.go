// Package memory provides the in-process storage adapter used for
// development and tests. Serial sub-stores are append-only slices; the
// reserved memory sub is a deep-copied key/value snapshot.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mullbot/mull/pkg/adapter"
)

// Store implements adapter.Storage entirely in memory.
type Store struct {
	mu     sync.RWMutex
	memory map[string]interface{}
	serial map[string][]map[string]interface{}
}

// New creates an empty store.
func New() *Store {
	return &Store{
		memory: make(map[string]interface{}),
		serial: make(map[string][]map[string]interface{}),
	}
}

// Name returns the adapter name.
func (s *Store) Name() string { return "memory" }

// Start is a no-op; the store is ready on construction.
func (s *Store) Start(ctx context.Context) error { return nil }

// Shutdown is a no-op.
func (s *Store) Shutdown(ctx context.Context) error { return nil }

// Keep appends a record to a serial sub-store.
func (s *Store) Keep(sub string, data interface{}) error {
	record, err := toRecord(data)
	if err != nil {
		return fmt.Errorf("keep %s: %w", sub, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serial[sub] = append(s.serial[sub], record)
	return nil
}

// Find returns records matching params by shallow key equality.
func (s *Store) Find(sub string, params map[string]interface{}) ([]map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []map[string]interface{}
	for _, record := range s.serial[sub] {
		if adapter.MatchParams(record, params) {
			out = append(out, record)
		}
	}
	return out, nil
}

// FindOne returns the first matching record, or nil.
func (s *Store) FindOne(sub string, params map[string]interface{}) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.serial[sub] {
		if adapter.MatchParams(record, params) {
			return record, nil
		}
	}
	return nil, nil
}

// Lose removes matching records from a serial sub-store.
func (s *Store) Lose(sub string, params map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.serial[sub][:0]
	for _, record := range s.serial[sub] {
		if !adapter.MatchParams(record, params) {
			kept = append(kept, record)
		}
	}
	s.serial[sub] = kept
	return nil
}

// SaveMemory snapshots the key/value brain. The copy is deep so later
// caller mutations cannot leak into storage.
func (s *Store) SaveMemory(data map[string]interface{}) error {
	snapshot, err := deepCopy(data)
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory = snapshot
	return nil
}

// LoadMemory returns a deep copy of the stored brain.
func (s *Store) LoadMemory() (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, err := deepCopy(s.memory)
	if err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	return out, nil
}

func toRecord(data interface{}) (map[string]interface{}, error) {
	if record, ok := data.(map[string]interface{}); ok {
		return record, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	record := make(map[string]interface{})
	if err := json.Unmarshal(encoded, &record); err != nil {
		return nil, err
	}
	return record, nil
}

func deepCopy(data map[string]interface{}) (map[string]interface{}, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Compile-time verification
var _ adapter.Storage = (*Store)(nil)
