package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-ingest/internal/logging"
)

func fixedLayout(t *testing.T, base string) *Layout {
	t.Helper()
	l := NewLayout(base)
	l.now = func() time.Time { return time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC) }
	l.retry.InitialBackoff = time.Millisecond
	l.retry.MaxBackoff = time.Millisecond
	return l
}

func TestResolveUsesDateDirectory(t *testing.T) {
	base := t.TempDir()
	l := fixedLayout(t, base)

	dest, err := l.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if dest.DateDir != "2026/03" {
		t.Errorf("DateDir = %q, want 2026/03", dest.DateDir)
	}
	if dest.FullDir != filepath.Join(base, "2026", "03") {
		t.Errorf("FullDir = %q", dest.FullDir)
	}
	if dest.Fallback() {
		t.Error("Fallback() = true, want false")
	}

	// Second call finds the directory already present.
	if _, err := l.Resolve(); err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}

	entries, _ := os.ReadDir(dest.FullDir)
	if len(entries) != 0 {
		t.Errorf("probe files left behind: %v", entries)
	}
}

func TestResolveMissingBase(t *testing.T) {
	l := fixedLayout(t, filepath.Join(t.TempDir(), "missing"))

	_, err := l.Resolve()
	if !errors.Is(err, ErrBaseUnavailable) {
		t.Fatalf("Resolve() error = %v, want ErrBaseUnavailable", err)
	}
	if err := l.Ready(); !errors.Is(err, ErrBaseUnavailable) {
		t.Errorf("Ready() error = %v, want ErrBaseUnavailable", err)
	}
}

func TestResolveBaseIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := fixedLayout(t, path)

	if _, err := l.Resolve(); !errors.Is(err, ErrBaseUnavailable) {
		t.Fatalf("Resolve() error = %v, want ErrBaseUnavailable", err)
	}
}

func TestResolveFallsBackToBase(t *testing.T) {
	base := t.TempDir()
	// A regular file where the year directory should go blocks MkdirAll.
	if err := os.WriteFile(filepath.Join(base, "2026"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := fixedLayout(t, base)

	dest, err := l.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !dest.Fallback() || dest.FullDir != l.BaseDir() {
		t.Errorf("Resolve() = %+v, want base directory fallback", dest)
	}
}

func TestEnsureWritableIdempotent(t *testing.T) {
	l := fixedLayout(t, t.TempDir())
	dir := filepath.Join(l.BaseDir(), "a", "b")
	for i := 0; i < 3; i++ {
		if err := l.EnsureWritable(dir); err != nil {
			t.Fatalf("EnsureWritable() call %d error = %v", i+1, err)
		}
	}
}

func TestAttemptWriteAndCleanup(t *testing.T) {
	l := fixedLayout(t, t.TempDir())
	dest, err := l.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	a := l.NewAttempt(dest, logging.NewScope("ingest", "test"))

	var rels []string
	for _, name := range []string{"original", "thumbnail", "medium"} {
		rel, err := a.Write(name, []byte(name))
		if err != nil {
			t.Fatalf("Write(%s) error = %v", name, err)
		}
		rels = append(rels, rel)
	}

	for i, rel := range rels {
		if !strings.HasPrefix(rel, "2026/03/") || !strings.HasSuffix(rel, ".webp") {
			t.Errorf("relative path %q has unexpected shape", rel)
		}
		if i > 0 && strings.Split(filepath.Base(rel), "_")[0] != strings.Split(filepath.Base(rels[0]), "_")[0] {
			t.Errorf("renditions do not share a stem: %q vs %q", rel, rels[0])
		}
	}

	paths := a.Paths()
	if len(paths) != 3 {
		t.Fatalf("Paths() = %d entries, want 3", len(paths))
	}

	report := a.Cleanup()
	if report.Removed != 3 || report.Failed != 0 {
		t.Errorf("Cleanup() = %+v, want 3 removed", report)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists after cleanup", p)
		}
	}

	if _, err := a.Write("late", []byte("x")); err == nil {
		t.Error("Write() after Cleanup succeeded, want error")
	}
}

func TestAttemptCleanupAfterExternalRemoval(t *testing.T) {
	l := fixedLayout(t, t.TempDir())
	dest, _ := l.Resolve()
	a := l.NewAttempt(dest, logging.NewScope("ingest", "test"))

	if _, err := a.Write("original", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(a.Paths()[0]); err != nil {
		t.Fatal(err)
	}

	if report := a.Cleanup(); report.Failed != 0 {
		t.Errorf("Cleanup() = %+v, want no failures for already-removed file", report)
	}
}

func TestAttemptCommitKeepsFiles(t *testing.T) {
	l := fixedLayout(t, t.TempDir())
	dest, _ := l.Resolve()
	a := l.NewAttempt(dest, logging.NewScope("ingest", "test"))

	if _, err := a.Write("original", []byte("x")); err != nil {
		t.Fatal(err)
	}
	paths := a.Paths()
	a.Commit()

	if report := a.Cleanup(); report.Removed != 0 {
		t.Errorf("Cleanup() after Commit removed %d files", report.Removed)
	}
	if _, err := os.Stat(paths[0]); err != nil {
		t.Errorf("committed file missing: %v", err)
	}
}

func TestDestinationRel(t *testing.T) {
	d := Destination{BaseDir: "/data", DateDir: "2026/03", FullDir: "/data/2026/03"}
	if got := d.Rel("/data/2026/03/x.webp"); got != "2026/03/x.webp" {
		t.Errorf("Rel() = %q", got)
	}
}
