// Package memory is an in-process session store used by tests.
package memory

import (
	"context"
	"sync"

	"github.com/smartlearnhub/slh/internal/storage"
)

// Store keeps the two keys in a map. FailSave, when set, is returned by the
// next Save without touching the map.
type Store struct {
	mu       sync.Mutex
	kv       map[string]string
	saves    int
	FailSave error
}

func New() *Store {
	return &Store{kv: make(map[string]string)}
}

func (s *Store) Load(ctx context.Context) (storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := storage.Record{Token: s.kv[storage.KeyToken], User: s.kv[storage.KeyUser]}
	if !rec.Valid() {
		return storage.Record{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) Save(ctx context.Context, rec storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		err := s.FailSave
		s.FailSave = nil
		return err
	}
	if !rec.Valid() {
		return storage.ErrIncomplete
	}
	s.kv[storage.KeyToken] = rec.Token
	s.kv[storage.KeyUser] = rec.User
	s.saves++
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, storage.KeyToken)
	delete(s.kv, storage.KeyUser)
	return nil
}

func (s *Store) Close() error { return nil }

// Snapshot returns a copy of the raw keys.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.kv))
	for k, v := range s.kv {
		out[k] = v
	}
	return out
}

// Saves counts successful Save calls.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
