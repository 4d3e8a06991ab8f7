// Package memory is a process-local storage.Store used for development and
// tests.
package memory

import (
	"context"
	"sync"

	"github.com/juju/errors"

	"github.com/Vasu1712/scenyx-stage/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps documents in nested maps guarded by a read-write mutex.
type Store struct {
	mu          sync.RWMutex                 // guards collections
	collections map[string]map[string][]byte // collection -> key -> document
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string][]byte),
	}
}

// Get returns a copy of the document stored under key.
func (s *Store) Get(_ context.Context, collection, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][key]
	if !ok {
		return nil, errors.NotFoundf("%s/%s", collection, key)
	}
	return append([]byte(nil), doc...), nil
}

// Put stores a copy of doc under key, replacing any previous document.
func (s *Store) Put(_ context.Context, collection, key string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string][]byte)
		s.collections[collection] = docs
	}
	docs[key] = append([]byte(nil), doc...)
	return nil
}

// Delete removes the document stored under key.
func (s *Store) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	if _, ok := docs[key]; !ok {
		return errors.NotFoundf("%s/%s", collection, key)
	}
	delete(docs, key)
	return nil
}

// List returns copies of every document in collection.
func (s *Store) List(_ context.Context, collection string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(s.collections[collection]))
	for key, doc := range s.collections[collection] {
		out[key] = append([]byte(nil), doc...)
	}
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
