package mediatypes

import (
	"errors"
	"fmt"

	"media-ingest/internal/geometry"
)

// OriginalName is the reserved rendition name for the canonical full-size copy.
const OriginalName = "original"

// ModeOriginal marks a rendition that is the original itself, either the
// original entry or a fallback substituted for a failed resize.
const ModeOriginal = "original"

// RequiredConcrete lists size names whose width and height may not be auto.
var RequiredConcrete = map[string]bool{
	"thumbnail": true,
}

// ErrInvalidSizes is returned when a size set fails validation.
var ErrInvalidSizes = errors.New("invalid rendition sizes")

// SizeSpec is one named rendition size.
type SizeSpec struct {
	Name   string             `json:"name"`
	Width  geometry.Dimension `json:"width"`
	Height geometry.Dimension `json:"height"`
	Mode   geometry.Mode      `json:"mode"`
}

// SizeSet is an ordered list of named sizes. The original is implicit and
// always produced first, so it never appears in the set.
type SizeSet []SizeSpec

// Validate checks names are unique and non-reserved, modes are known,
// dimensions are non-negative and required sizes are fully concrete.
func (s SizeSet) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, spec := range s {
		switch {
		case spec.Name == "":
			return fmt.Errorf("%w: empty size name", ErrInvalidSizes)
		case spec.Name == OriginalName:
			return fmt.Errorf("%w: %q is reserved", ErrInvalidSizes, OriginalName)
		case seen[spec.Name]:
			return fmt.Errorf("%w: duplicate size %q", ErrInvalidSizes, spec.Name)
		case spec.Width < 0 || spec.Height < 0:
			return fmt.Errorf("%w: size %q has negative dimensions", ErrInvalidSizes, spec.Name)
		case spec.Mode != geometry.Contain && spec.Mode != geometry.Cover:
			return fmt.Errorf("%w: size %q: %w", ErrInvalidSizes, spec.Name, geometry.ErrUnknownMode)
		case RequiredConcrete[spec.Name] && (spec.Width.IsAuto() || spec.Height.IsAuto()):
			return fmt.Errorf("%w: size %q requires a concrete width and height", ErrInvalidSizes, spec.Name)
		}
		seen[spec.Name] = true
	}
	return nil
}

// Names returns the configured names in order.
func (s SizeSet) Names() []string {
	names := make([]string, 0, len(s))
	for _, spec := range s {
		names = append(names, spec.Name)
	}
	return names
}
