// Package geometry computes the crop and scale rectangles needed to turn a
// source image into a rendition of a target box without distortion.
//
// Two layout modes are supported:
//   - Contain: the whole source is scaled to fit inside the box and centered;
//     the remaining area is letterboxed by the caller.
//   - Cover: a centered window of the source with the box's aspect ratio is
//     cropped and scaled to fill the box exactly.
//
// All arithmetic is done on integers so that a source and a box with the
// same aspect ratio always produce an uncropped, unletterboxed plan.
package geometry
