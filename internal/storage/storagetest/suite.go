// Package storagetest holds the behaviour every storage.Store must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/juju/errors"

	"github.com/Vasu1712/scenyx-stage/internal/storage"
)

// RunStoreTests exercises a Store returned fresh by newStore for each test.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), storage.Scenes, "1")
		if !errors.Is(err, errors.NotFound) {
			t.Fatalf("Get() error = %v, want NotFound", err)
		}
	})

	t.Run("PutGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		doc := []byte{0, 1, 2, 255}
		if err := s.Put(ctx, storage.Scenes, "1", doc); err != nil {
			t.Fatalf("Put() error: %v", err)
		}
		doc[0] = 9
		got, err := s.Get(ctx, storage.Scenes, "1")
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if string(got) != string([]byte{0, 1, 2, 255}) {
			t.Errorf("Get() = %v, want stored copy", got)
		}
	})

	t.Run("CollectionsAreSeparate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Put(ctx, storage.Scenes, "1", []byte("scene")); err != nil {
			t.Fatalf("Put() error: %v", err)
		}
		if _, err := s.Get(ctx, storage.Fixtures, "1"); !errors.Is(err, errors.NotFound) {
			t.Fatalf("Get() from other collection error = %v, want NotFound", err)
		}
	})

	t.Run("DeleteAndList", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, key := range []string{"1", "2", "3"} {
			if err := s.Put(ctx, storage.Fixtures, key, []byte("fx"+key)); err != nil {
				t.Fatalf("Put(%s) error: %v", key, err)
			}
		}
		if err := s.Delete(ctx, storage.Fixtures, "2"); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}
		if err := s.Delete(ctx, storage.Fixtures, "2"); !errors.Is(err, errors.NotFound) {
			t.Fatalf("second Delete() error = %v, want NotFound", err)
		}
		docs, err := s.List(ctx, storage.Fixtures)
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if len(docs) != 2 || string(docs["1"]) != "fx1" || string(docs["3"]) != "fx3" {
			t.Errorf("List() = %q", docs)
		}
	})

	t.Run("ListEmpty", func(t *testing.T) {
		s := newStore(t)
		docs, err := s.List(context.Background(), storage.State)
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if len(docs) != 0 {
			t.Errorf("List() = %q, want empty", docs)
		}
	})
}
