// Package metrics provides Prometheus instrumentation for the ingestion service.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "media_ingest_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//   - HTTPUploadBytes: Histogram of accepted upload sizes
//
// ## Ingestion Metrics
//
// Track each upload from admission to the persisted manifest:
//   - IngestAttemptsTotal: Counter by result and failure reason
//   - IngestDuration: Histogram of end-to-end duration by result
//   - IngestStageDuration: Histogram per stage (quota, verify, layout, generate, persist)
//   - IngestInProgress, IngestTranscodeWaiting: Gauges of concurrent work
//   - QuotaRejectionsTotal: Counter of uploads refused by the asset ceiling
//   - CleanupFilesRemoved, CleanupFailures: Counters from rollback of failed attempts
//
// ## Rendition Metrics
//
//   - RenditionsTotal: Counter by status (success/fallback)
//   - RenditionDuration: Histogram of render+encode+write per rendition
//   - ImageDecodeDuration, ImageDecodeErrors: By source format
//   - ImageEncodeDuration, ImageRenderDuration: WebP encode and geometry work
//
// ## Database and Filesystem Metrics
//
//   - DBQueryTotal, DBQueryDuration, DBTransactionDuration
//   - DBConnectionsOpen, DBSizeBytes
//   - Filesystem*: operation latency, errors and NFS retry counters, recorded
//     through [NewFilesystemObserver]
//
// ## Memory Metrics
//
//   - MemoryUsageRatio, MemoryPaused: Heap usage against the limit
//   - MemoryGCPauses, MemoryPressureWaits: Backpressure activity
//
// # Collector
//
// [Collector] periodically reads a [StatsProvider] (the database) and
// updates the asset inventory gauges:
//
//	collector := metrics.NewCollector(db, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Ingestion failure rate by reason:
//
//	sum(rate(media_ingest_attempts_total{result="error"}[5m])) by (reason)
//
// Share of renditions served by the original fallback:
//
//	rate(media_ingest_renditions_total{status="fallback"}[1h]) /
//	rate(media_ingest_renditions_total[1h])
package metrics
