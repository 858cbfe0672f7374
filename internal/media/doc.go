// Package media turns a verified upload into stored renditions.
//
// The Transcoder decodes the closed set of source formats into NRGBA
// bitmaps, lays them out with a geometry plan and encodes them to WebP via
// libvips. The Generator drives it: the original is produced first and is
// mandatory, then every named size is attempted in order, falling back to
// the original when a size cannot be produced.
package media
