package assets_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"explainer/internal/assets"
	"explainer/internal/script"
)

func TestResolveMatchesBySceneID(t *testing.T) {
	images := []assets.Image{{SceneID: 2, Path: "/img/2.png"}, {SceneID: 1, Path: "/img/1.png"}}
	audio := []assets.Audio{{SceneID: 1, Path: "/audio/1.mp3"}}
	r := assets.NewResolver(images, audio, nil)

	res := r.Resolve(script.Scene{ID: 1, DurationSeconds: 10})
	if !res.HasImage || res.ImagePath != "/img/1.png" {
		t.Fatalf("unexpected image resolution: %+v", res)
	}
	if res.AudioPath != "/audio/1.mp3" || res.Silent() {
		t.Fatalf("unexpected audio resolution: %+v", res)
	}

	res = r.Resolve(script.Scene{ID: 2, DurationSeconds: 10})
	if !res.HasImage || !res.Silent() {
		t.Fatalf("expected image with silent audio, got %+v", res)
	}
}

func TestResolveTreatsSilentAndEmptyAudioAlike(t *testing.T) {
	images := []assets.Image{{SceneID: 1, Path: "a.png"}, {SceneID: 2, Path: "b.png"}}
	audio := []assets.Audio{
		{SceneID: 1, Path: "narration.mp3", Silent: true},
		{SceneID: 2, Path: "   "},
	}
	r := assets.NewResolver(images, audio, nil)
	for _, id := range []int{1, 2} {
		if res := r.Resolve(script.Scene{ID: id}); !res.Silent() {
			t.Fatalf("scene %d: expected silent resolution, got %+v", id, res)
		}
	}
}

func TestResolveMissingImage(t *testing.T) {
	r := assets.NewResolver([]assets.Image{{SceneID: 1, Path: ""}}, nil, nil)
	if res := r.Resolve(script.Scene{ID: 1}); res.HasImage {
		t.Fatalf("expected blank path to count as missing, got %+v", res)
	}
	if res := r.Resolve(script.Scene{ID: 9}); res.HasImage {
		t.Fatalf("expected unknown scene to be missing, got %+v", res)
	}
}

func TestResolveDuplicateFirstWinsAndWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	images := []assets.Image{{SceneID: 3, Path: "first.png"}, {SceneID: 3, Path: "second.png"}}
	r := assets.NewResolver(images, nil, logger)

	res := r.Resolve(script.Scene{ID: 3})
	if res.ImagePath != "first.png" {
		t.Fatalf("expected first match to win, got %q", res.ImagePath)
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "asset_duplicate") || !strings.Contains(out, "scene_id=3") {
		t.Fatalf("expected duplicate warning, got %q", out)
	}
}
