package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"media-ingest/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. libvips allocates its pixel buffers outside the Go heap, so the rest
// is left for it.
const DefaultMemoryRatio = 0.85

// Limit sources reported in ConfigResult.Source.
const (
	SourceGoMemLimit  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceNone        = "none"
)

// ConfigResult describes how the heap limit was configured.
type ConfigResult struct {
	Configured     bool
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv applies a heap limit from the environment. Call it early
// in main before large allocations.
//
//   - GOMEMLIMIT: honoured as-is by the runtime, only reported here
//   - MEMORY_LIMIT: container limit in bytes (Kubernetes Downward API)
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the heap (default 0.85)
func ConfigureFromEnv() ConfigResult {
	result := configure(os.Getenv, debug.SetMemoryLimit)
	switch result.Source {
	case SourceGoMemLimit:
		logging.Info("GOMEMLIMIT set via environment: %s", formatBytes(result.GoMemLimit))
	case SourceMemoryLimit:
		logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
			formatBytes(result.GoMemLimit), result.Ratio*100, formatBytes(result.ContainerLimit))
	default:
		logging.Debug("No memory limit configured, heap is unbounded")
	}
	return result
}

// configure resolves the limit using getenv and applies it with setLimit,
// which has the signature of debug.SetMemoryLimit.
func configure(getenv func(string) string, setLimit func(int64) int64) ConfigResult {
	if getenv("GOMEMLIMIT") != "" {
		if limit := setLimit(-1); limit > 0 && limit < math.MaxInt64 {
			return ConfigResult{Configured: true, Source: SourceGoMemLimit, GoMemLimit: limit}
		}
		return ConfigResult{Source: SourceGoMemLimit}
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		return ConfigResult{Source: SourceNone}
	}
	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", raw)
		return ConfigResult{Source: SourceNone}
	}

	ratio := parseRatio(getenv("MEMORY_RATIO"))
	heapLimit := int64(float64(containerLimit) * ratio)
	setLimit(heapLimit)

	return ConfigResult{
		Configured:     true,
		Source:         SourceMemoryLimit,
		ContainerLimit: containerLimit,
		GoMemLimit:     heapLimit,
		Ratio:          ratio,
	}
}

func parseRatio(raw string) float64 {
	if raw == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		logging.Warn("MEMORY_RATIO %q must be in (0, 1], using %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
