package sweeper

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-ingest/internal/filesystem"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
)

// fileJob is a rendition file old enough to be considered.
type fileJob struct {
	path    string
	relPath string
}

// walker walks the storage tree and removes orphans with a worker pool.
type walker struct {
	baseDir string
	config  Config
	refs    map[string]struct{}
	cutoff  time.Time
	retry   filesystem.RetryConfig

	jobs chan fileJob
	wg   sync.WaitGroup

	scanned atomic.Int64
	orphans atomic.Int64
	removed atomic.Int64
	failed  atomic.Int64
}

func newWalker(baseDir string, config Config, refs map[string]struct{}, cutoff time.Time) *walker {
	return &walker{
		baseDir: baseDir,
		config:  config,
		refs:    refs,
		cutoff:  cutoff,
		retry:   filesystem.DefaultRetryConfig(),
		jobs:    make(chan fileJob, config.NumWorkers*64),
	}
}

func (w *walker) walk(ctx context.Context) (Report, error) {
	metrics.SweepWorkers.Set(float64(w.config.NumWorkers))

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.worker(ctx)
	}

	err := w.enqueue(ctx)
	close(w.jobs)
	w.wg.Wait()

	if err == nil {
		err = ctx.Err()
	}
	return Report{
		Scanned: w.scanned.Load(),
		Orphans: w.orphans.Load(),
		Removed: w.removed.Load(),
		Failed:  w.failed.Load(),
	}, err
}

// enqueue walks the tree and sends unreferenced, old rendition files to the
// workers.
func (w *walker) enqueue(ctx context.Context) error {
	ext := mediatypes.Canonical.Extension()

	return filepath.WalkDir(w.baseDir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		if err != nil {
			if path == w.baseDir {
				return err
			}
			logging.Warn("Sweep cannot access %s: %v", path, err)
			return nil
		}

		if path != w.baseDir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}

		w.scanned.Add(1)

		relPath, err := filepath.Rel(w.baseDir, path)
		if err != nil {
			//nolint:nilerr // skip this file but keep walking
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if _, ok := w.refs[relPath]; ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			//nolint:nilerr // removed concurrently
			return nil
		}
		if info.ModTime().After(w.cutoff) {
			return nil
		}

		w.orphans.Add(1)
		select {
		case w.jobs <- fileJob{path: path, relPath: relPath}:
		case <-ctx.Done():
			return fs.SkipAll
		}
		return nil
	})
}

func (w *walker) worker(ctx context.Context) {
	defer w.wg.Done()

	for job := range w.jobs {
		if ctx.Err() != nil {
			continue
		}
		if w.config.DryRun {
			logging.Info("Sweep (dry run): would remove orphan %s", job.relPath)
			continue
		}
		if err := filesystem.RemoveWithRetry(job.path, w.retry); err != nil {
			w.failed.Add(1)
			logging.Warn("Sweep failed to remove orphan %s: %v", job.relPath, err)
			continue
		}
		w.removed.Add(1)
		metrics.SweepOrphansRemoved.Inc()
		logging.Debug("Sweep removed orphan %s", job.relPath)
	}
}
