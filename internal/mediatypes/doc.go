// Package mediatypes provides the shared data model of the ingestion
// pipeline.
//
// It exists as a foundation that other packages import without creating
// cycles, and depends on nothing beyond the standard library and the
// geometry package.
//
// # Image Types
//
// ImageType enumerates the closed set of accepted formats. WebP is the
// canonical format every rendition is written in:
//
//	t := mediatypes.FromMimeType("image/png") // mediatypes.TypePNG
//	t.IsAllowed()                             // true
//	t.SupportsAlpha()                         // true
//
// # Sizes
//
// SizeSet is the ordered list of named renditions produced for each upload.
// The "original" entry is implicit. Validate rejects duplicates, unknown
// layout modes and auto dimensions on sizes that must be concrete.
//
// # Manifests
//
// AssetManifest maps each rendition name to the Rendition that was written
// for it. A manifest is only ever persisted once every named size has an
// entry.
package mediatypes
