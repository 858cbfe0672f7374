/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

# Purpose

Rendition storage is frequently an NFS export shared by several replicas. This
package wraps the few operations the ingestion pipeline performs on it (stat,
remove, directory creation and file writes) so that transient ESTALE errors
are retried instead of failing an upload or leaving an orphaned file behind
during cleanup.

# Key Features

  - Automatic retry with exponential backoff for NFS ESTALE errors (errno 116)
  - Configurable retry attempts (default: 3) and backoff timings
  - Removal treats "already gone" as success so cleanup is idempotent
  - Metrics are reported through an Observer, set once at startup

# Usage

	cfg := filesystem.DefaultRetryConfig()
	if err := filesystem.RemoveWithRetry(path, cfg); err != nil {
	    logging.Warn("cleanup failed: %v", err)
	}
*/
package filesystem
