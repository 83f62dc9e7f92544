package testsupport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"explainer/internal/assets"
)

// WriteFile creates path with size bytes of filler, creating parent
// directories. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteSceneImages writes a placeholder image per scene ID under dir and
// returns the matching asset entries.
func WriteSceneImages(t testing.TB, dir string, sceneIDs ...int) []assets.Image {
	t.Helper()

	images := make([]assets.Image, 0, len(sceneIDs))
	for _, id := range sceneIDs {
		path := filepath.Join(dir, fmt.Sprintf("scene-%d.png", id))
		WriteFile(t, path, 256)
		images = append(images, assets.Image{SceneID: id, Path: path})
	}
	return images
}
