// Package middleware provides HTTP middleware for the ingestion service.
//
// It includes:
//   - Request logging in W3C Extended Log Format with per-request IDs
//   - Prometheus request metrics labelled by route template
//   - gzip compression of JSON responses
package middleware
