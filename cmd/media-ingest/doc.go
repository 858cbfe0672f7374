// Package main provides the entry point for the media ingest service.
//
// The service accepts image uploads from authenticated clients, verifies
// that the bytes are a supported image, and stores a WebP original plus a
// set of resized renditions under a dated directory layout. Each accepted
// upload is recorded as an asset manifest in SQLite.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from MEMORY_LIMIT when provided
//  2. Configuration Loading: Reads environment variables, rendition profiles
//     and validates directories
//  3. Database Initialization: Opens the SQLite manifest and token store
//  4. Component Initialization:
//     - libvips: WebP encoder
//     - Memory Monitor: Holds back new transcodes under heap pressure
//     - Metrics Collector: Refreshes inventory gauges every minute
//     - Storage Sweeper: Removes rendition files no manifest references
//     - Ingest Service: Verifier, quota guard, storage layout and
//     rendition generator
//  5. HTTP Server Setup: Routes, middleware and the optional metrics server
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM and lets in-flight uploads
//     finish within SHUTDOWN_TIMEOUT
//
// # HTTP Servers
//
//  1. Main Server (default port 8080):
//     - POST /api/assets: upload an image (multipart field "file",
//     optional field "profile")
//     - GET /api/assets, GET /api/assets/{id}: manifests of the caller
//     - GET /api/quota: asset count and ceiling of the caller
//     - GET /files/{relativePath}: stored renditions
//     - /health, /healthz, /livez, /readyz, /version: probes
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Liveness endpoint (/health)
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests and drain in-flight uploads
//  2. Shutdown metrics server (if running)
//  3. Stop storage sweeper (a running sweep is canceled)
//  4. Stop metrics collector
//  5. Stop memory monitor
//  6. Shutdown libvips
//  7. Close database connections
//
// # Build Requirements
//
// CGO is required for SQLite and libvips:
//
//	go build -o media-ingest ./cmd/media-ingest
//
// See [media-ingest/internal/startup] for the environment variables.
package main
