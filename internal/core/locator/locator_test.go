package locator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestGatherDirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.json"))
	touch(t, filepath.Join(dir, "a.chatreplay.json"))
	touch(t, filepath.Join(dir, "sub", "c.json"))
	touch(t, filepath.Join(dir, "notes.txt"))

	files, err := Gather(dir, nil)
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Expected 3 files, got %d: %v", len(files), files)
	}
	// Replay archives come first
	if filepath.Base(files[0]) != "a.chatreplay.json" {
		t.Errorf("Expected replay archive first, got %s", files[0])
	}
}

func TestGatherSingleFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "session.json")
	touch(t, file)

	files, err := Gather(file, nil)
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(files) != 1 || files[0] != file {
		t.Errorf("Expected [%s], got %v", file, files)
	}
}

func TestGatherMissingTarget(t *testing.T) {
	_, err := Gather(filepath.Join(t.TempDir(), "nope.json"), nil)
	if err == nil {
		t.Fatal("Expected an error for a missing target")
	}
}

func TestGatherEmptyDirectory(t *testing.T) {
	_, err := Gather(t.TempDir(), nil)
	if !errors.Is(err, ErrNoInputFiles) {
		t.Errorf("Expected ErrNoInputFiles, got %v", err)
	}
}

func TestGatherDeduplicates(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "s.json")
	touch(t, file)

	link := filepath.Join(dir, "alias.json")
	if err := os.Symlink(file, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	files, err := Gather(dir, nil)
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(files) != 1 {
		t.Errorf("Expected symlinked duplicate to be dropped, got %v", files)
	}
}

func TestDefaultStorageDirsCoverKnownEditors(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")

	dirs := DefaultStorageDirs()
	found := false
	for _, dir := range dirs {
		if dir == filepath.Join("/tmp/xdg", "Code", "User", "globalStorage", "github.copilot-chat", "chatSessions") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected the Code storage dir under XDG_DATA_HOME, got %v", dirs)
	}
}
