package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Filesystem operation metrics (per volume × operation) ---
	volumes := []string{"storage", "database"}
	fsOps := []string{"stat", "open", "write", "remove", "mkdir"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}

	// --- Ingestion outcomes ---
	IngestAttemptsTotal.WithLabelValues("success", "")
	for _, reason := range []string{"missing_file", "disallowed_type", "too_large", "type_mismatch",
		"quota_exceeded", "invalid_sizes", "corrupt_image", "storage_unavailable", "internal", "canceled"} {
		IngestAttemptsTotal.WithLabelValues("error", reason)
	}
	for _, result := range []string{"success", "error"} {
		IngestDuration.WithLabelValues(result)
	}
	for _, stage := range []string{"quota", "verify", "layout", "generate", "persist"} {
		IngestStageDuration.WithLabelValues(stage)
	}

	// --- Renditions and decode by format ---
	for _, status := range []string{"success", "fallback"} {
		RenditionsTotal.WithLabelValues(status)
	}
	for _, format := range []string{"jpeg", "png", "gif", "webp"} {
		ImageDecodeDuration.WithLabelValues(format)
		ImageDecodeErrors.WithLabelValues(format)
		AssetSourceTypes.WithLabelValues(format)
	}

	// --- DB query operations ---
	for _, op := range []string{"initialize_schema", "insert_manifest", "get_manifest", "list_manifests",
		"count_assets_by_owner", "create_token", "authenticate_token", "revoke_token", "get_stats",
		"referenced_paths"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, result := range []string{"success", "error", "skipped"} {
		SweepRunsTotal.WithLabelValues(result)
	}

	for _, status := range []string{"success", "failure", "missing", "error"} {
		AuthAttemptsTotal.WithLabelValues(status)
	}
}
