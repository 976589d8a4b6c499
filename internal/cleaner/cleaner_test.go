package cleaner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artemis/handoffd/internal/model"
	"github.com/artemis/handoffd/internal/queue"
)

func TestMoverRelocatesFile(t *testing.T) {
	buffer := t.TempDir()
	holding := t.TempDir()

	if err := os.MkdirAll(filepath.Join(buffer, "raw"), 0o755); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(buffer, "raw", "img.fits")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	mv, err := NewMover(holding, nil)
	if err != nil {
		t.Fatal(err)
	}

	in := queue.New[model.FileItem]()
	out := queue.New[model.FileItem]()
	in.Put(model.FileItem{Head: buffer, Tail: "raw", Name: "img.fits", Size: 4})

	if err := mv.Run(in, out); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("want source file removed after move")
	}
	dst := filepath.Join(holding, "raw", "img.fits")
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("want file present at destination: %v", err)
	}

	moved := out.Drain(10)
	if len(moved) != 1 {
		t.Fatalf("want 1 moved item, got %d", len(moved))
	}
	if moved[0].Head != holding {
		t.Fatalf("want Head rewritten to holding area, got %q", moved[0].Head)
	}
}

func TestMoverSkipsMissingSource(t *testing.T) {
	holding := t.TempDir()
	mv, err := NewMover(holding, nil)
	if err != nil {
		t.Fatal(err)
	}

	in := queue.New[model.FileItem]()
	out := queue.New[model.FileItem]()
	in.Put(model.FileItem{Head: t.TempDir(), Tail: "", Name: "missing.dat"})

	if err := mv.Run(in, out); err != nil {
		t.Fatal(err)
	}
	if items := out.Drain(10); len(items) != 0 {
		t.Fatalf("want no items forwarded for missing source, got %d", len(items))
	}
}

func TestEraserRemovesOldEmptyDirsOnly(t *testing.T) {
	buffer := t.TempDir()
	oldDir := filepath.Join(buffer, "old")
	freshDir := filepath.Join(buffer, "fresh")
	if err := os.MkdirAll(oldDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(freshDir, 0o755); err != nil {
		t.Fatal(err)
	}

	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldDir, past, past); err != nil {
		t.Fatal(err)
	}

	er, err := NewEraser(buffer, time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := er.Run(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Fatal("want old empty directory removed")
	}
	if _, err := os.Stat(freshDir); err != nil {
		t.Fatal("want fresh empty directory kept")
	}
}
