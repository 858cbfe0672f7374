package memory

import (
	"context"
	"errors"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
)

// ErrStopped is returned by Wait after the monitor has been stopped.
var ErrStopped = errors.New("memory monitor stopped")

// Config holds the backpressure thresholds.
type Config struct {
	// LimitBytes is the reference limit. Zero uses GOMEMLIMIT when set.
	LimitBytes int64
	// HighWaterMark is the usage ratio below which a pause is lifted.
	HighWaterMark float64
	// CriticalWaterMark is the usage ratio that pauses new transcodes.
	CriticalWaterMark float64
	CheckInterval     time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     2 * time.Second,
	}
}

// Monitor samples heap usage and holds back new transcodes while it is above
// the critical watermark. Work already running is never interrupted.
type Monitor struct {
	config Config
	limit  int64
	sample func() uint64

	mu      sync.Mutex
	current uint64
	paused  bool
	resumed chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor. Without any limit it never pauses.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < math.MaxInt64 {
			limit = goMemLimit
		}
	}
	if limit > 0 {
		logging.Info("Memory backpressure enabled: limit %s, pause at %.0f%%, resume below %.0f%%",
			formatBytes(limit), config.CriticalWaterMark*100, config.HighWaterMark*100)
	} else {
		logging.Info("Memory backpressure disabled: no memory limit configured")
	}

	return &Monitor{
		config:  config,
		limit:   limit,
		sample:  heapAlloc,
		resumed: make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Enabled reports whether a limit is known.
func (m *Monitor) Enabled() bool {
	return m.limit > 0
}

// Start begins periodic sampling.
func (m *Monitor) Start() {
	if !m.Enabled() {
		return
	}
	go m.loop()
}

// Stop ends sampling and releases every waiter with ErrStopped.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) check() {
	alloc := m.sample()
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = alloc

	switch {
	case !m.paused && usage >= m.config.CriticalWaterMark:
		logging.Warn("Memory critical (%.1f%% of limit), holding new transcodes", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case m.paused && usage < m.config.HighWaterMark:
		logging.Info("Memory recovered (%.1f%% of limit), resuming transcodes", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resumed)
		m.resumed = make(chan struct{})
	}
}

// Wait returns immediately unless the monitor is paused, in which case it
// blocks until usage recovers, ctx ends or the monitor stops.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return nil
	}
	resumed := m.resumed
	m.mu.Unlock()

	metrics.MemoryPressureWaits.Inc()
	select {
	case <-resumed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stop:
		return ErrStopped
	}
}

// Paused reports whether new transcodes are being held.
func (m *Monitor) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Stats returns the last sample, the limit and their ratio.
func (m *Monitor) Stats() (current, limit int64, usage float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current = math.MaxInt64
	if m.current <= math.MaxInt64 {
		current = int64(m.current)
	}
	if m.limit > 0 {
		usage = float64(m.current) / float64(m.limit)
	}
	return current, m.limit, usage
}
