/*
Package workers sizes the transcode concurrency limit in containerized
environments.

Go 1.19+ sets GOMAXPROCS from the container CPU limit, while runtime.NumCPU()
still reports the host. Decoding, resampling and WebP encoding are CPU-bound,
so the ingestion service admits one transcode per available CPU:

	slots := workers.ForCPU(8) // max 8 concurrent transcodes

Operators can fix the number with TRANSCODE_WORKERS:

	env:
	- name: TRANSCODE_WORKERS
	  value: "4"

All functions are safe for concurrent use.
*/
package workers
