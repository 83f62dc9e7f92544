package fileutil

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "dst.bin")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestMoveFileRenames(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "work", "output.mp4")
	dst := filepath.Join(dir, "videos", "final.mp4")
	for _, d := range []string{filepath.Dir(src), filepath.Dir(dst)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(src, []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source to be gone, stat err=%v", err)
	}
	if got, _ := os.ReadFile(dst); string(got) != "mp4" {
		t.Fatalf("unexpected destination content %q", got)
	}
	if _, err := os.Stat(PartialPath(dst)); !os.IsNotExist(err) {
		t.Fatalf("partial file should not exist, stat err=%v", err)
	}
}

func TestMoveFileRefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	for _, p := range []string{src, dst} {
		if err := os.WriteFile(p, []byte(p), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := MoveFile(src, dst); err == nil {
		t.Fatal("expected error when destination exists")
	}
	if got, _ := os.ReadFile(dst); string(got) != dst {
		t.Fatal("destination was overwritten")
	}
}

func TestIsCrossDevice(t *testing.T) {
	if !isCrossDevice(&os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EXDEV}) {
		t.Fatal("expected EXDEV to be detected")
	}
	if isCrossDevice(&os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.ENOENT}) {
		t.Fatal("ENOENT is not a cross-device error")
	}
}

func TestPartialPath(t *testing.T) {
	if got := PartialPath("/videos/intro-1.mp4"); got != "/videos/.intro-1.mp4.partial" {
		t.Fatalf("unexpected partial path %q", got)
	}
}
