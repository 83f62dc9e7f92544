package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const manifest = `{
  "script": {
    "title": "Tides",
    "scenes": [
      {"id": 1, "duration": 12.5, "narration": "The moon pulls.", "visual_description": "Earth and moon", "visual_type": "diagram"},
      {"id": 2, "duration": 7.5, "narration": "", "visual_description": "Summary card", "visual_type": "summary"}
    ]
  },
  "images": [
    {"scene_id": 1, "path": "images/1.png"},
    {"scene_id": 2, "path": "/abs/2.png"}
  ],
  "audio": [
    {"scene_id": 1, "path": "audio/1.mp3"},
    {"scene_id": 2, "silent": true}
  ]
}`

func TestLoadRequestResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	req, err := LoadRequest(path)
	if err != nil {
		t.Fatalf("LoadRequest: %v", err)
	}
	if req.ID != "" || req.Script.Title != "Tides" || len(req.Script.Scenes) != 2 {
		t.Fatalf("unexpected request %+v", req)
	}
	if got := req.Images[0].Path; got != filepath.Join(dir, "images", "1.png") {
		t.Fatalf("relative image not resolved: %q", got)
	}
	if got := req.Images[1].Path; got != "/abs/2.png" {
		t.Fatalf("absolute path changed: %q", got)
	}
	if got := req.Audio[0].Path; got != filepath.Join(dir, "audio", "1.mp3") {
		t.Fatalf("relative audio not resolved: %q", got)
	}
	if req.Audio[1].Path != "" || !req.Audio[1].Silent {
		t.Fatalf("silent audio mangled: %+v", req.Audio[1])
	}
}

func TestDecodeRequestRejectsUnknownFields(t *testing.T) {
	_, err := DecodeRequest(strings.NewReader(`{"script": {"scenes": []}, "voice": "alloy"}`), "")
	if err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestNewRunIDIsUnique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == "" || a == b {
		t.Fatalf("expected distinct ids, got %q and %q", a, b)
	}
}
