package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
)

// ErrSweepInProgress is returned by Sweep while another sweep is running.
var ErrSweepInProgress = errors.New("sweep already in progress")

// ReferenceSource lists the relative paths that manifests still reference.
type ReferenceSource interface {
	ReferencedPaths(ctx context.Context) (map[string]struct{}, error)
}

// Config controls when and how aggressively the sweeper runs.
type Config struct {
	// Interval between sweeps. Zero runs only the startup sweep.
	Interval time.Duration
	// MinAge protects files written by uploads still in progress.
	MinAge time.Duration
	// NumWorkers is the number of parallel removal workers.
	NumWorkers int
	// DryRun reports orphans without removing them.
	DryRun bool
}

// DefaultConfig returns the standard sweep schedule.
func DefaultConfig() Config {
	return Config{
		Interval:   6 * time.Hour,
		MinAge:     time.Hour,
		NumWorkers: 3,
	}
}

// Report summarizes one sweep.
type Report struct {
	Scanned  int64         `json:"scanned"`
	Orphans  int64         `json:"orphans"`
	Removed  int64         `json:"removed"`
	Failed   int64         `json:"failed"`
	Duration time.Duration `json:"duration"`
	Finished time.Time     `json:"finished"`
}

// Sweeper periodically reconciles the storage tree with the manifests.
type Sweeper struct {
	refs    ReferenceSource
	baseDir string
	config  Config
	now     func() time.Time

	mu      sync.Mutex
	running bool
	started bool
	last    Report

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a sweeper for the tree rooted at baseDir.
func New(refs ReferenceSource, baseDir string, config Config) *Sweeper {
	if config.NumWorkers < 1 {
		config.NumWorkers = 1
	}
	return &Sweeper{
		refs:    refs,
		baseDir: baseDir,
		config:  config,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start runs an initial sweep in the background and then sweeps on the
// configured interval until Stop.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.loop()
}

// Stop cancels a running sweep and waits for the loop to exit.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

func (s *Sweeper) loop() {
	defer close(s.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.runLogged(ctx)
	if s.config.Interval <= 0 {
		<-s.stop
		return
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runLogged(ctx)
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) runLogged(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("Storage sweep failed: %v", err)
	}
}

// Sweep performs one pass over the storage tree.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		metrics.SweepRunsTotal.WithLabelValues("skipped").Inc()
		return Report{}, ErrSweepInProgress
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := s.now()
	refs, err := s.refs.ReferencedPaths(ctx)
	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues("error").Inc()
		return Report{}, err
	}

	w := newWalker(s.baseDir, s.config, refs, start.Add(-s.config.MinAge))
	report, err := w.walk(ctx)
	report.Duration = time.Since(start)
	report.Finished = s.now()

	metrics.SweepDuration.Observe(report.Duration.Seconds())
	metrics.SweepFilesScanned.Set(float64(report.Scanned))
	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues("error").Inc()
		return report, err
	}
	metrics.SweepRunsTotal.WithLabelValues("success").Inc()
	metrics.SweepLastRunTimestamp.Set(float64(report.Finished.Unix()))

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	if report.Orphans > 0 {
		logging.Info("Storage sweep: %d files scanned, %d orphans, %d removed, %d failed in %v",
			report.Scanned, report.Orphans, report.Removed, report.Failed, report.Duration)
	} else {
		logging.Debug("Storage sweep: %d files scanned, no orphans (%v)", report.Scanned, report.Duration)
	}
	return report, nil
}

// LastReport returns the result of the most recent successful sweep.
func (s *Sweeper) LastReport() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Running reports whether a sweep is in progress.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
