package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"media-ingest/internal/filesystem"
	"media-ingest/internal/logging"
)

// ErrBaseUnavailable is returned when the storage root is missing or not writable.
var ErrBaseUnavailable = errors.New("storage base directory unavailable")

const dirPerm = 0o755

// Layout resolves destination directories under a storage root.
type Layout struct {
	baseDir string
	now     func() time.Time
	retry   filesystem.RetryConfig
}

// Destination is the directory chosen for one asset.
type Destination struct {
	BaseDir string
	// DateDir is "YYYY/MM", or empty when the base directory is used directly.
	DateDir string
	FullDir string
}

// Fallback reports whether the dated directory could not be used.
func (d Destination) Fallback() bool {
	return d.DateDir == ""
}

// Rel returns path relative to the storage root using forward slashes.
func (d Destination) Rel(path string) string {
	rel, err := filepath.Rel(d.BaseDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// NewLayout creates a layout rooted at baseDir.
func NewLayout(baseDir string) *Layout {
	return &Layout{
		baseDir: filepath.Clean(baseDir),
		now:     time.Now,
		retry:   filesystem.DefaultRetryConfig(),
	}
}

// BaseDir returns the storage root.
func (l *Layout) BaseDir() string {
	return l.baseDir
}

// Resolve picks the directory for a new asset. A missing or unwritable base
// directory is fatal; a failing date directory falls back to the base.
func (l *Layout) Resolve() (Destination, error) {
	info, err := filesystem.StatWithRetry(l.baseDir, l.retry)
	if err != nil {
		return Destination{}, fmt.Errorf("%w: %v", ErrBaseUnavailable, err)
	}
	if !info.IsDir() {
		return Destination{}, fmt.Errorf("%w: %s is not a directory", ErrBaseUnavailable, l.baseDir)
	}
	if err := l.probe(l.baseDir); err != nil {
		return Destination{}, fmt.Errorf("%w: %v", ErrBaseUnavailable, err)
	}

	dateDir := l.now().Format("2006/01")
	full := filepath.Join(l.baseDir, filepath.FromSlash(dateDir))
	if err := l.EnsureWritable(full); err != nil {
		logging.Warn("Date directory %s unusable, writing to storage root: %v", full, err)
		return Destination{BaseDir: l.baseDir, FullDir: l.baseDir}, nil
	}

	return Destination{BaseDir: l.baseDir, DateDir: dateDir, FullDir: full}, nil
}

// EnsureWritable creates dir if needed and verifies a file can be created in
// it. Calling it on an existing writable directory is a no-op.
func (l *Layout) EnsureWritable(dir string) error {
	if err := filesystem.MkdirAllWithRetry(dir, dirPerm, l.retry); err != nil {
		return err
	}
	return l.probe(dir)
}

func (l *Layout) probe(dir string) error {
	path := filepath.Join(dir, ".probe-"+uuid.NewString())
	if err := filesystem.WriteFileExclusive(path, nil, 0o600, l.retry); err != nil {
		return err
	}
	return filesystem.RemoveWithRetry(path, l.retry)
}

// Ready reports whether the storage root is present. Used by readiness probes.
func (l *Layout) Ready() error {
	info, err := os.Stat(l.baseDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBaseUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrBaseUnavailable, l.baseDir)
	}
	return nil
}
