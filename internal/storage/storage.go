// Package storage defines the document store the stage service persists to.
// A store holds a handful of named collections, each a flat map from key to
// an opaque document.
package storage

import "context"

// Collections used by the stage service.
const (
	Fixtures = "fixtures"
	Scenes   = "scenes"
	State    = "state"
)

// Store is a keyed document store. Get and Delete return an error satisfying
// errors.Is(err, errors.NotFound) when the key is absent.
type Store interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	Put(ctx context.Context, collection, key string, doc []byte) error
	Delete(ctx context.Context, collection, key string) error
	// List returns every document in the collection keyed by document key.
	List(ctx context.Context, collection string) (map[string][]byte, error)
	Close() error
}
