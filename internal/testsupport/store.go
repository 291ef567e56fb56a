package testsupport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"clipmill/internal/config"
	"clipmill/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem builds an ingested item whose ID is derived from title so tests get
// stable, distinct fingerprints.
func NewItem(title string) *queue.Item {
	sum := sha256.Sum256([]byte(title))
	return &queue.Item{
		ID:               hex.EncodeToString(sum[:]),
		Title:            title,
		Body:             "Body of " + title + ".",
		Author:           "tester",
		SourceCollection: "tifu",
		IngestedAt:       time.Now().UTC(),
	}
}

// PutItem persists item and fails the test on error.
func PutItem(t testing.TB, store *queue.Store, item *queue.Item) *queue.Item {
	t.Helper()

	if err := store.Put(context.Background(), item); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
	return item
}

// MustGet fetches an item and fails the test when it is missing.
func MustGet(t testing.TB, store *queue.Store, id string) *queue.Item {
	t.Helper()

	item, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if item == nil {
		t.Fatalf("item %s not found", id)
	}
	return item
}
