// Package localstore is the per-device key-value store behind local-only
// preference state. It survives restarts without a server round trip and
// is never synchronized across devices.
package localstore

import (
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Store is a typed get/set surface used uniformly by the preference
// controller instead of ad hoc storage keys per feature.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key string, value string) error
	Delete(key string) error
	Close() error
}

// PebbleStore persists to an embedded pebble database on the device.
type PebbleStore struct {
	db *pebble.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(key string) (string, bool, error) {
	val, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	out := string(val)
	if err := closer.Close(); err != nil {
		return "", false, err
	}
	return out, true, nil
}

func (s *PebbleStore) Set(key string, value string) error {
	return s.db.Set([]byte(key), []byte(value), pebble.Sync)
}

func (s *PebbleStore) Delete(key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

// MemoryStore is an in-memory Store for tests and ephemeral sessions.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemory constructs an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.m[key]
	return val, ok, nil
}

func (s *MemoryStore) Set(key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
