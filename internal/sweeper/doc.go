// Package sweeper removes rendition files that no asset manifest references.
//
// Ingestion deletes the files of a failed attempt itself, but a process that
// dies between writing renditions and committing the manifest leaves them
// behind. The sweeper walks the storage tree with a small worker pool,
// compares every rendition file against the relative paths recorded in the
// database and removes the unreferenced ones.
//
// Files younger than Config.MinAge are never touched so that an upload still
// in progress cannot lose its renditions. Hidden files, such as the
// writability probes of the storage layout, are skipped.
//
// A sweep runs once at Start and then every Config.Interval. Sweep can be
// called directly; overlapping sweeps are refused with ErrSweepInProgress.
package sweeper
