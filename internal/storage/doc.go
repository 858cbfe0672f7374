/*
Package storage decides where an asset's files live and tracks the files one
ingestion attempt has written.

# Layout

Renditions are grouped into a date directory below the storage root:

	<base>/<YYYY>/<MM>/<uuid>_<rendition>.webp

The base directory must exist and accept writes. If the dated directory cannot
be created, files fall back to the base directory and a warning is logged.

# Attempts

An Attempt records every path before the write happens, so Cleanup can remove
partial files as well as complete ones. Cleanup is best-effort: individual
removal failures are logged and never replace the error that triggered it.
*/
package storage
