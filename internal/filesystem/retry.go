package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
	"time"

	"media-ingest/internal/logging"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Volume labels metrics, e.g. "storage" or "database".
	Volume string
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
		Volume:         "storage",
	}
}

// isNFSStaleError checks if an error is an NFS stale file handle error
func isNFSStaleError(err error) bool {
	if err == nil {
		return false
	}

	// ESTALE is errno 116 on Linux
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}

	return false
}

// withRetry runs fn until it succeeds, fails with a non-ESTALE error, or
// the retry budget is spent.
func withRetry(op, path string, config RetryConfig, fn func() error) error {
	start := time.Now()
	o := observe()
	backoff := config.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s succeeded on retry %d for %s", op, attempt, path)
				o.ObserveRetrySuccess(op, config.Volume)
			}
			o.ObserveOperation(config.Volume, op, time.Since(start).Seconds(), nil)
			return nil
		}

		lastErr = err

		// Only retry on NFS stale file handle errors
		if !isNFSStaleError(err) {
			o.ObserveOperation(config.Volume, op, time.Since(start).Seconds(), err)
			return err
		}

		o.ObserveStaleError(op, config.Volume)

		// Don't sleep after the last attempt
		if attempt < config.MaxRetries {
			o.ObserveRetryAttempt(op, config.Volume)
			logging.Debug("NFS %s stale file handle for %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)

			// Exponential backoff with cap
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("NFS %s failed after %d retries for %s: %v", op, config.MaxRetries, path, lastErr)
	o.ObserveRetryFailure(op, config.Volume)
	o.ObserveOperation(config.Volume, op, time.Since(start).Seconds(), lastErr)
	return lastErr
}

// StatWithRetry performs os.Stat with retry logic for NFS stale file handle errors
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := withRetry("stat", path, config, func() error {
		var statErr error
		info, statErr = os.Stat(path)
		return statErr
	})
	return info, err
}

// OpenWithRetry opens a file for reading, retrying on ESTALE.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	var file *os.File
	err := withRetry("open", path, config, func() error {
		var openErr error
		file, openErr = os.Open(path)
		return openErr
	})
	return file, err
}

// RemoveWithRetry removes a file, retrying on ESTALE. A file that no longer
// exists counts as removed.
func RemoveWithRetry(path string, config RetryConfig) error {
	return withRetry("remove", path, config, func() error {
		err := os.Remove(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	})
}

// MkdirAllWithRetry creates a directory tree. An existing directory is success.
func MkdirAllWithRetry(path string, perm os.FileMode, config RetryConfig) error {
	return withRetry("mkdir", path, config, func() error {
		return os.MkdirAll(path, perm)
	})
}

// WriteFileExclusive creates path and writes data to it, failing if the file
// already exists. A partially written file is removed before returning.
func WriteFileExclusive(path string, data []byte, perm os.FileMode, config RetryConfig) error {
	start := time.Now()
	err := writeExclusive(path, data, perm)
	observe().ObserveOperation(config.Volume, "write", time.Since(start).Seconds(), err)
	return err
}

func writeExclusive(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	_, writeErr := f.Write(data)
	closeErr := f.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logging.Warn("failed to remove partial file %s: %v", path, rmErr)
		}
		return writeErr
	}
	return nil
}
