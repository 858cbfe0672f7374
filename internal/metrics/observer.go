package metrics

import "media-ingest/internal/filesystem"

// filesystemObserver feeds filesystem retry and latency events into the
// Filesystem* collectors. Events without a volume are attributed to storage.
type filesystemObserver struct{}

// NewFilesystemObserver returns the observer installed with
// filesystem.SetObserver at startup.
func NewFilesystemObserver() filesystem.Observer {
	return filesystemObserver{}
}

func volumeLabel(volume string) string {
	if volume == "" {
		return "storage"
	}
	return volume
}

func (filesystemObserver) ObserveOperation(volume, op string, seconds float64, err error) {
	volume = volumeLabel(volume)
	FilesystemOperationDuration.WithLabelValues(volume, op).Observe(seconds)
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(volume, op).Inc()
	}
}

func (filesystemObserver) ObserveRetryAttempt(op, volume string) {
	FilesystemRetryAttempts.WithLabelValues(op, volumeLabel(volume)).Inc()
}

func (filesystemObserver) ObserveRetrySuccess(op, volume string) {
	FilesystemRetrySuccess.WithLabelValues(op, volumeLabel(volume)).Inc()
}

func (filesystemObserver) ObserveRetryFailure(op, volume string) {
	FilesystemRetryFailures.WithLabelValues(op, volumeLabel(volume)).Inc()
}

func (filesystemObserver) ObserveStaleError(op, volume string) {
	FilesystemStaleErrors.WithLabelValues(op, volumeLabel(volume)).Inc()
}
