package history_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"explainer/internal/history"
	"explainer/internal/testsupport"
)

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created, err := store.Create(ctx, history.Render{ID: "run-a", Title: "Photosynthesis", ManifestPath: "/tmp/m.json", SceneCount: 3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != history.StatusPending || created.SceneCount != 3 || created.CreatedAt.IsZero() {
		t.Fatalf("unexpected created render %+v", created)
	}
	if filepath.Dir(store.Path()) != cfg.Paths.StateDir {
		t.Fatalf("expected database under state dir, got %s", store.Path())
	}

	if _, err := store.Create(ctx, history.Render{ID: "run-a"}); !errors.Is(err, history.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := store.Create(ctx, history.Render{}); err == nil {
		t.Fatal("expected empty id to fail")
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for unknown id, got %v, %v", missing, err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.NewRender(t, store, "ok", "Good Run")
	testsupport.NewRender(t, store, "bad", "Bad Run")

	if err := store.UpdateStage(ctx, "ok", "encoding"); err != nil {
		t.Fatalf("UpdateStage: %v", err)
	}
	r, _ := store.Get(ctx, "ok")
	if r.Status != history.StatusRendering || r.Stage != "encoding" {
		t.Fatalf("unexpected render after stage update: %+v", r)
	}

	skipped := []history.SkippedScene{{SceneID: 3, Reason: "missing scene asset"}}
	if err := store.Complete(ctx, "ok", history.Outcome{
		OutputPath: "/videos/good-run-ok.mp4", SizeBytes: 4096, DurationSeconds: 120, SegmentCount: 4, Skipped: skipped,
	}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	r, _ = store.Get(ctx, "ok")
	if r.Status != history.StatusDone || r.SizeBytes != 4096 || r.DurationSeconds != 120 || r.SegmentCount != 4 {
		t.Fatalf("unexpected completed render %+v", r)
	}
	if len(r.Skipped) != 1 || r.Skipped[0] != skipped[0] {
		t.Fatalf("skipped scenes not persisted: %+v", r.Skipped)
	}
	if r.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}

	if err := store.Fail(ctx, "bad", history.StatusDone, "encoding", "boom", nil); err == nil {
		t.Fatal("expected done to be rejected as a failure status")
	}
	if err := store.Fail(ctx, "bad", history.StatusCancelled, "encoding", "context canceled", nil); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	r, _ = store.Get(ctx, "bad")
	if r.Status != history.StatusCancelled || r.ErrorMessage != "context canceled" || !r.Status.IsTerminal() {
		t.Fatalf("unexpected failed render %+v", r)
	}

	if err := store.UpdateStage(ctx, "ghost", "encoding"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, id := range []string{"first", "second", "third"} {
		testsupport.NewRender(t, store, id, id)
		time.Sleep(2 * time.Millisecond)
	}
	if err := store.Fail(ctx, "second", history.StatusFailed, "concatenating", "exit status 1", nil); err != nil {
		t.Fatal(err)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "third" || all[2].ID != "first" {
		t.Fatalf("unexpected order: %v", ids(all))
	}
	limited, err := store.List(ctx, 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("expected 2 rows, got %d (err=%v)", len(limited), err)
	}
	failed, err := store.List(ctx, 0, history.StatusFailed)
	if err != nil || len(failed) != 1 || failed[0].ID != "second" {
		t.Fatalf("unexpected filtered list %v (err=%v)", ids(failed), err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[history.StatusPending] != 2 || stats[history.StatusFailed] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestPruneRemovesExpiredOutputs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	output := filepath.Join(cfg.Paths.OutputDir, "old-video.mp4")
	testsupport.WriteFile(t, output, 64)
	testsupport.NewRender(t, store, "old", "Old")
	if err := store.Complete(ctx, "old", history.Outcome{OutputPath: output, SizeBytes: 64, SegmentCount: 1}); err != nil {
		t.Fatal(err)
	}
	testsupport.NewRender(t, store, "failed", "Failed")
	if err := store.Fail(ctx, "failed", history.StatusFailed, "encoding", "no valid segments", nil); err != nil {
		t.Fatal(err)
	}

	expired, err := store.Expired(ctx, time.Now().Add(-time.Hour))
	if err != nil || len(expired) != 0 {
		t.Fatalf("nothing should be expired yet, got %v (err=%v)", ids(expired), err)
	}

	result, err := store.Prune(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.Removed) != 1 || result.Removed[0] != "old" || len(result.Errors) != 0 {
		t.Fatalf("unexpected prune result %+v", result)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("expected output removed, stat err=%v", err)
	}
	if r, _ := store.Get(ctx, "failed"); r == nil {
		t.Fatal("failed renders are not pruned")
	}
}

func TestResetInterrupted(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.NewRender(t, store, "pending", "p")
	testsupport.NewRender(t, store, "rendering", "r")
	testsupport.NewRender(t, store, "done", "d")
	if err := store.UpdateStage(ctx, "rendering", "encoding"); err != nil {
		t.Fatal(err)
	}
	if err := store.Complete(ctx, "done", history.Outcome{OutputPath: "/x.mp4"}); err != nil {
		t.Fatal(err)
	}

	n, err := store.ResetInterrupted(ctx)
	if err != nil {
		t.Fatalf("ResetInterrupted: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows reset, got %d", n)
	}
	r, _ := store.Get(ctx, "rendering")
	if r.Status != history.StatusFailed || r.Stage != "encoding" {
		t.Fatalf("unexpected reset render %+v", r)
	}
}

func TestDelete(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.NewRender(t, store, "gone", "g")
	ok, err := store.Delete(ctx, "gone")
	if err != nil || !ok {
		t.Fatalf("expected delete to succeed, got %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "gone")
	if err != nil || ok {
		t.Fatalf("second delete should report false, got %v %v", ok, err)
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := history.ParseStatus(" Done "); !ok || s != history.StatusDone {
		t.Fatalf("unexpected parse result %q %v", s, ok)
	}
	if _, ok := history.ParseStatus("queued"); ok {
		t.Fatal("unknown status should not parse")
	}
}

func ids(renders []*history.Render) []string {
	out := make([]string, 0, len(renders))
	for _, r := range renders {
		out = append(out, r.ID)
	}
	return out
}
