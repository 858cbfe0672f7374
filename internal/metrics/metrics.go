package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPUploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_ingest_http_upload_bytes",
			Help:    "Size of accepted upload bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Ingestion metrics
var (
	IngestAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_attempts_total",
			Help: "Total number of ingestion attempts by outcome",
		},
		[]string{"result", "reason"},
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_duration_seconds",
			Help:    "End-to-end ingestion duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"result"},
	)

	IngestStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_stage_duration_seconds",
			Help:    "Duration of each ingestion stage in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"}, // "quota", "verify", "layout", "generate", "persist"
	)

	IngestInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_in_progress",
			Help: "Number of ingestions currently being processed",
		},
	)

	IngestTranscodeWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_transcode_waiting",
			Help: "Number of ingestions waiting for a transcode slot",
		},
	)

	QuotaRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ingest_quota_rejections_total",
			Help: "Total number of uploads rejected by the per-user asset ceiling",
		},
	)

	CleanupFilesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ingest_cleanup_files_removed_total",
			Help: "Files removed while rolling back failed ingestions",
		},
	)

	CleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ingest_cleanup_failures_total",
			Help: "Files that could not be removed while rolling back failed ingestions",
		},
	)
)

// Rendition and image processing metrics
var (
	RenditionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_renditions_total",
			Help: "Total number of renditions produced by outcome",
		},
		[]string{"status"}, // "success", "fallback"
	)

	RenditionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_ingest_rendition_duration_seconds",
			Help:    "Time to render, encode and write one rendition",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	ImageDecodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_image_decode_duration_seconds",
			Help:    "Source image decode duration by format",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"format"},
	)

	ImageDecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_image_decode_errors_total",
			Help: "Source images that failed to decode, by format",
		},
		[]string{"format"},
	)

	ImageEncodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_ingest_image_encode_duration_seconds",
			Help:    "WebP encode duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	ImageRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_ingest_image_render_duration_seconds",
			Help:    "Crop, resize and letterbox duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_filesystem_retry_attempts_total",
			Help: "Retries issued after NFS stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_filesystem_stale_errors_total",
			Help: "NFS stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Asset inventory metrics
var (
	AssetsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_assets_total",
			Help: "Total number of stored assets",
		},
	)

	AssetOwnersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_asset_owners_total",
			Help: "Number of users owning at least one asset",
		},
	)

	StoredBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_stored_bytes",
			Help: "Bytes of rendition files referenced by manifests",
		},
	)

	AssetSourceTypes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_assets_by_source_type",
			Help: "Stored assets by uploaded source format",
		},
		[]string{"format"},
	)

	APITokensTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_api_tokens_total",
			Help: "Number of issued API tokens",
		},
	)
)

// Authentication metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"status"},
	)
)

// Memory pressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_memory_paused",
			Help: "1 while new transcodes are held back by memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ingest_memory_gc_pauses_total",
			Help: "Times the critical watermark was crossed and a GC was forced",
		},
	)

	MemoryPressureWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ingest_memory_pressure_waits_total",
			Help: "Uploads that waited for memory pressure to clear before transcoding",
		},
	)
)

// Orphan sweeper metrics
var (
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_sweep_runs_total",
			Help: "Storage sweeps by result",
		},
		[]string{"result"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_ingest_sweep_duration_seconds",
			Help:    "Duration of storage sweeps",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		},
	)

	SweepFilesScanned = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_sweep_files_scanned",
			Help: "Rendition files examined by the last sweep",
		},
	)

	SweepOrphansRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ingest_sweep_orphans_removed_total",
			Help: "Unreferenced rendition files removed by the sweeper",
		},
	)

	SweepWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_sweep_workers",
			Help: "Number of parallel workers used by the sweeper",
		},
	)

	SweepLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_sweep_last_run_timestamp_seconds",
			Help: "Unix time of the last completed sweep",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
