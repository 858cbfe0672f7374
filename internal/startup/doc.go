// Package startup handles application initialization, configuration loading,
// rendition profiles, and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - STORAGE_DIR: Root of the rendition store (default: /storage)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - SHUTDOWN_TIMEOUT: Grace period for in-flight uploads (default: 30s)
//   - MAX_UPLOAD_BYTES: Upload size ceiling in bytes (default: 10 MiB)
//   - MAX_IMAGE_PIXELS: Pixel ceiling applied before decoding (default: 40 MP)
//   - ORIGINAL_QUALITY / RESIZE_QUALITY: WebP quality presets (default: 90 / 82)
//   - USER_ASSET_CEILING: Per-owner asset limit, 0 disables (default: 0)
//   - LETTERBOX_COLOR: Contain-mode fill for opaque sources (default: #ffffff)
//   - RENDITIONS_FILE: YAML rendition profile file (default: built-in profiles)
//   - TRANSCODE_WORKERS: Concurrent transcode slots (default: derived from CPUs)
//   - SWEEP_ENABLED: Remove unreferenced rendition files (default: true)
//   - SWEEP_INTERVAL: Time between sweeps, 0 sweeps only at startup (default: 6h)
//   - SWEEP_MIN_AGE: Minimum file age before removal, at least 1m (default: 1h)
//   - SWEEP_WORKERS: Parallel removal workers (default: 3)
//   - SWEEP_DRY_RUN: Log orphans without removing them (default: false)
//   - MEMORY_LIMIT / MEMORY_RATIO / GOMEMLIMIT: Heap limit, see package memory
//
// # Rendition Profiles
//
// A profile is a named size set. [DefaultProfiles] ships thumbnail, medium
// and large renditions; [LoadProfiles] reads the same shape from YAML:
//
//	default: standard
//	profiles:
//	  standard:
//	    - {name: thumbnail, width: 150, height: 150, mode: cover}
//	    - {name: medium, width: 800, height: auto, mode: contain}
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogVipsInit]: libvips availability
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
