// Package logging provides a simple leveled logging interface for the
// media ingestion service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. Scope loggers prefix each line with the
// identifier of an ingestion attempt so concurrent uploads can be told apart.
package logging
