// Package database provides SQLite storage for the ingestion service.
//
// It holds:
//   - Asset manifests, one row per successfully ingested upload, with the
//     rendition map stored as JSON
//   - API tokens used for bearer authentication (bcrypt-hashed secrets)
//
// Inserting a manifest is the commit point of an ingestion: once the row
// exists the asset's files are owned by it.
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization.
package database
