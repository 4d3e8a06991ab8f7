// Package valkeystore persists stage documents in Valkey, one hash per
// collection.
package valkeystore

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/scenyx-stage/internal/storage"
)

var logger = loggo.GetLogger("stage.storage.valkey")

var _ storage.Store = (*Store)(nil)

// Options configures the connection.
type Options struct {
	Address  string
	Password string
	DB       int
	// Prefix namespaces the collection hashes, e.g. "stage" gives
	// "stage:scenes".
	Prefix string
}

// Store implements storage.Store on a Valkey client.
type Store struct {
	client valkey.Client
	prefix string
}

// NewStore dials Valkey and checks the connection with PING.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{opts.Address},
		Password:    opts.Password,
		SelectDB:    opts.DB,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "connecting to valkey at %s", opts.Address)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, errors.Annotatef(err, "pinging valkey at %s", opts.Address)
	}
	logger.Infof("connected to valkey at %s (db %d)", opts.Address, opts.DB)
	return NewStoreWithClient(client, opts.Prefix), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client valkey.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "stage"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(collection string) string {
	return s.prefix + ":" + collection
}

// Get reads field key of the collection hash.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	doc, err := s.client.Do(ctx, s.client.B().Hget().Key(s.key(collection)).Field(key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, errors.NotFoundf("%s/%s", collection, key)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "reading %s/%s", collection, key)
	}
	return doc, nil
}

// Put writes field key of the collection hash.
func (s *Store) Put(ctx context.Context, collection, key string, doc []byte) error {
	cmd := s.client.B().Hset().Key(s.key(collection)).FieldValue().FieldValue(key, valkey.BinaryString(doc)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return errors.Annotatef(err, "writing %s/%s", collection, key)
	}
	return nil
}

// Delete removes field key of the collection hash.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	n, err := s.client.Do(ctx, s.client.B().Hdel().Key(s.key(collection)).Field(key).Build()).AsInt64()
	if err != nil {
		return errors.Annotatef(err, "deleting %s/%s", collection, key)
	}
	if n == 0 {
		return errors.NotFoundf("%s/%s", collection, key)
	}
	return nil
}

// List reads the whole collection hash.
func (s *Store) List(ctx context.Context, collection string) (map[string][]byte, error) {
	fields, err := s.client.Do(ctx, s.client.B().Hgetall().Key(s.key(collection)).Build()).AsStrMap()
	if err != nil {
		return nil, errors.Annotatef(err, "listing %s", collection)
	}
	out := make(map[string][]byte, len(fields))
	for key, doc := range fields {
		out[key] = []byte(doc)
	}
	return out, nil
}

// Close closes the client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}
