// Package handlers provides the HTTP API of the ingestion service.
//
// It includes handlers for:
//   - Image upload (multipart) and asset manifest listing
//   - Quota standing for the authenticated owner
//   - Serving stored renditions from the storage root
//   - Bearer-token authentication
//   - Health, readiness and version endpoints
//
// Every failed upload is answered with a fixed user-facing message and a
// stable machine-readable reason:
//
//	{"error": "You have reached the maximum number of stored images.",
//	 "reason": "quota_exceeded", "quotaCeiling": 50}
package handlers
