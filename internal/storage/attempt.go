package storage

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"media-ingest/internal/filesystem"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
)

const filePerm = 0o644

// CleanupReport summarizes a Cleanup call.
type CleanupReport struct {
	Removed int
	Failed  int
}

// Attempt tracks files written for one ingestion. It satisfies the rendition
// generator's destination interface.
type Attempt struct {
	dest   Destination
	stem   string
	retry  filesystem.RetryConfig
	log    logging.Scope
	mu     sync.Mutex
	paths  []string
	closed bool
}

// NewAttempt starts tracking writes into dest. Every file shares one random
// stem so an asset's renditions sort together on disk.
func (l *Layout) NewAttempt(dest Destination, log logging.Scope) *Attempt {
	return &Attempt{
		dest:  dest,
		stem:  uuid.NewString(),
		retry: l.retry,
		log:   log,
	}
}

// Write stores data for the named rendition and returns its path relative to
// the storage root.
func (a *Attempt) Write(name string, data []byte) (string, error) {
	path := filepath.Join(a.dest.FullDir, fmt.Sprintf("%s_%s%s", a.stem, name, mediatypes.Canonical.Extension()))

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return "", fmt.Errorf("write %s: attempt already finished", name)
	}
	a.paths = append(a.paths, path)
	a.mu.Unlock()

	if err := filesystem.WriteFileExclusive(path, data, filePerm, a.retry); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return a.dest.Rel(path), nil
}

// Paths returns the absolute paths recorded so far, in write order.
func (a *Attempt) Paths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

// Commit marks the attempt successful. Later Cleanup calls do nothing.
func (a *Attempt) Commit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.paths = nil
}

// Cleanup removes every recorded file in reverse write order. Failures are
// logged and counted, never returned.
func (a *Attempt) Cleanup() CleanupReport {
	a.mu.Lock()
	paths := a.paths
	a.paths = nil
	a.closed = true
	a.mu.Unlock()

	var report CleanupReport
	for i := len(paths) - 1; i >= 0; i-- {
		if err := filesystem.RemoveWithRetry(paths[i], a.retry); err != nil {
			a.log.Warn("Failed to remove %s during cleanup: %v", paths[i], err)
			report.Failed++
			continue
		}
		report.Removed++
	}
	if len(paths) > 0 {
		a.log.Debug("Cleanup removed %d of %d files", report.Removed, len(paths))
	}
	return report
}
