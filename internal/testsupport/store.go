package testsupport

import (
	"context"
	"testing"

	"copydesk/internal/config"
	"copydesk/internal/store"
	"copydesk/internal/workflow"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, registry *workflow.Registry) *store.Store {
	t.Helper()

	st, err := store.Open(cfg, registry)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustAddItem inserts an item for tests using the provided store.
func MustAddItem(t testing.TB, st *store.Store, item store.NewItem) *store.Record {
	t.Helper()

	rec, err := st.AddItem(context.Background(), item)
	if err != nil {
		t.Fatalf("store.AddItem: %v", err)
	}
	return rec
}

// MustLink records a relationship for tests.
func MustLink(t testing.TB, st *store.Store, ownerID, dependentID, kind string) {
	t.Helper()

	if err := st.Link(context.Background(), ownerID, dependentID, kind); err != nil {
		t.Fatalf("store.Link: %v", err)
	}
}
