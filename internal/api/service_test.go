package api_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"explainer/internal/api"
	"explainer/internal/history"
	"explainer/internal/render"
	"explainer/internal/script"
	"explainer/internal/services"
	"explainer/internal/testsupport"
)

type fakeRenderer struct {
	outputDir string
	err       error
	observe   render.Observer
}

func (f *fakeRenderer) Render(ctx context.Context, req render.Request) (*render.Artifact, error) {
	if f.observe != nil {
		f.observe(ctx, req.ID, render.StateEncoding)
	}
	if f.err != nil {
		return nil, f.err
	}
	path := filepath.Join(f.outputDir, req.ID+".mp4")
	if err := os.MkdirAll(f.outputDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte("video-bytes"), 0o644); err != nil {
		return nil, err
	}
	return &render.Artifact{
		ID:                   req.ID,
		Title:                req.Script.Title,
		Path:                 path,
		SizeBytes:            int64(len("video-bytes")),
		TotalDurationSeconds: 12,
		SceneCount:           len(req.Script.Scenes),
		SegmentCount:         len(req.Script.Scenes) - 1,
		Skipped:              []render.SkippedScene{{SceneID: 2, Index: 1, Reason: "missing image"}},
	}, nil
}

func sampleRequest(id string) render.Request {
	return render.Request{
		ID: id,
		Script: script.Script{
			Title: "Photosynthesis",
			Scenes: []script.Scene{
				{ID: 1, DurationSeconds: 6, NarrationText: "Light", VisualType: script.VisualTitle},
				{ID: 2, DurationSeconds: 6, NarrationText: "Water", VisualType: script.VisualDiagram},
			},
		},
	}
}

func TestRenderServiceRunRecordsSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	renderer := &fakeRenderer{outputDir: cfg.Paths.OutputDir}
	var stages []string
	renderer.observe = func(ctx context.Context, runID string, state render.State) {
		api.StageRecorder(store, nil)(ctx, runID, state)
		got, _ := store.Get(ctx, runID)
		if got != nil {
			stages = append(stages, got.Stage)
		}
	}
	svc := api.NewRenderService(store, renderer, nil)

	record, artifact, err := svc.Run(context.Background(), sampleRequest("run-1"), "/tmp/manifest.json")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if artifact == nil || record == nil {
		t.Fatal("expected artifact and record")
	}
	if record.Status != history.StatusDone {
		t.Fatalf("status = %s, want done", record.Status)
	}
	if record.OutputPath != artifact.Path || record.SizeBytes != artifact.SizeBytes {
		t.Fatalf("record does not reflect artifact: %+v", record)
	}
	if record.ManifestPath != "/tmp/manifest.json" {
		t.Fatalf("manifest path = %q", record.ManifestPath)
	}
	if len(record.Skipped) != 1 || record.Skipped[0].SceneID != 2 {
		t.Fatalf("skipped = %+v", record.Skipped)
	}
	if len(stages) != 1 || stages[0] != string(render.StateEncoding) {
		t.Fatalf("recorded stages = %v", stages)
	}
	if svc.Active() != 0 {
		t.Fatalf("active = %d after run", svc.Active())
	}
}

func TestRenderServiceRunAssignsID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewRenderService(store, &fakeRenderer{outputDir: cfg.Paths.OutputDir}, nil)

	record, _, err := svc.Run(context.Background(), sampleRequest(""), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestRenderServiceRunRejectsDuplicateID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewRenderService(store, &fakeRenderer{outputDir: cfg.Paths.OutputDir}, nil)
	if _, _, err := svc.Run(context.Background(), sampleRequest("run-dup"), ""); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	failing := &fakeRenderer{err: errors.New("renderer must not run")}
	svc = api.NewRenderService(store, failing, nil)
	record, artifact, err := svc.Run(context.Background(), sampleRequest("run-dup"), "")
	if !errors.Is(err, history.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if record != nil || artifact != nil {
		t.Fatalf("expected no record or artifact, got %+v %+v", record, artifact)
	}
	existing, err := store.Get(context.Background(), "run-dup")
	if err != nil || existing == nil || existing.Status != history.StatusDone {
		t.Fatalf("first render should be untouched, got %+v (%v)", existing, err)
	}
}

func TestRenderServiceRunRecordsFailureStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want history.Status
	}{
		{"rejected", services.Wrap(services.ErrInvalidScript, "init", "validate", "bad", nil), history.StatusRejected},
		{"cancelled", fmt.Errorf("scene 1: %w", context.Canceled), history.StatusCancelled},
		{"failed", services.Wrap(services.ErrNoValidSegments, "encoding", "", "all skipped", nil), history.StatusFailed},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			store := testsupport.MustOpenStore(t, cfg)
			runErr := &render.RunError{
				RunID:   fmt.Sprintf("run-%d", i),
				Stage:   render.StateEncoding,
				Skipped: []render.SkippedScene{{SceneID: 1, Reason: "encode failed"}},
				Err:     tc.err,
			}
			svc := api.NewRenderService(store, &fakeRenderer{err: runErr}, nil)

			record, artifact, err := svc.Run(context.Background(), sampleRequest(runErr.RunID), "")
			if !errors.Is(err, tc.err) {
				t.Fatalf("Run error = %v, want %v", err, tc.err)
			}
			if artifact != nil {
				t.Fatal("expected no artifact")
			}
			if record == nil {
				t.Fatal("expected failure record")
			}
			if record.Status != tc.want {
				t.Fatalf("status = %s, want %s", record.Status, tc.want)
			}
			if record.Stage != string(render.StateEncoding) {
				t.Fatalf("stage = %q", record.Stage)
			}
			if len(record.Skipped) != 1 {
				t.Fatalf("skipped = %+v", record.Skipped)
			}
			if record.ErrorMessage == "" {
				t.Fatal("expected error message")
			}
		})
	}
}

func TestRenderServiceRemove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewRenderService(store, &fakeRenderer{outputDir: cfg.Paths.OutputDir}, nil)
	ctx := context.Background()

	record, _, err := svc.Run(ctx, sampleRequest("run-rm"), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	found, err := svc.Remove(ctx, "run-rm")
	if err != nil || !found {
		t.Fatalf("Remove = %v, %v", found, err)
	}
	if _, err := os.Stat(record.OutputPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected output removed, stat err = %v", err)
	}
	if got, _ := svc.Describe(ctx, "run-rm"); got != nil {
		t.Fatal("expected record removed")
	}
	found, err = svc.Remove(ctx, "run-rm")
	if err != nil || found {
		t.Fatalf("second Remove = %v, %v", found, err)
	}
}

func TestRenderServiceRemoveRefusesActiveRender(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewRender(t, store, "run-live", "Live")
	svc := api.NewRenderService(store, &fakeRenderer{}, nil)

	found, err := svc.Remove(context.Background(), "run-live")
	if !found || !errors.Is(err, api.ErrRenderActive) {
		t.Fatalf("Remove = %v, %v; want ErrRenderActive", found, err)
	}
}

func TestRenderServicePruneDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewRenderService(store, &fakeRenderer{}, nil)

	result, err := svc.Prune(context.Background(), 0)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.Removed) != 0 {
		t.Fatalf("removed = %v", result.Removed)
	}
}
