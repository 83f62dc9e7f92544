package testsupport

import (
	"context"
	"testing"

	"explainer/internal/config"
	"explainer/internal/history"
)

// MustOpenStore opens a history.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRender creates a pending render row for tests.
func NewRender(t testing.TB, store *history.Store, id, title string) *history.Render {
	t.Helper()

	r, err := store.Create(context.Background(), history.Render{ID: id, Title: title, SceneCount: 3})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return r
}
