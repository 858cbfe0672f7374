// Package memory configures the Go heap limit and applies backpressure to
// image transcoding.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from a container limit passed through
// MEMORY_LIMIT (scaled by MEMORY_RATIO), unless GOMEMLIMIT is already set.
//
// A [Monitor] samples heap allocation. Once usage crosses the critical
// watermark, [Monitor.Wait] blocks new transcodes until usage falls below
// the high watermark. Transcodes already running are not interrupted.
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	svc := ingest.NewService(..., ingest.Config{Memory: monitor})
package memory
