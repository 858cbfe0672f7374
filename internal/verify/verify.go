// Package verify confirms that uploaded bytes really are an image of an
// allowed kind.
//
// Two independent signals are used: a byte-signature sniff of the content
// and a header decode by the registered image decoders. Both must name the
// same allowed format. Client supplied names and content types are never
// consulted.
package verify

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	// Decoders consulted by image.DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp" // WebP format support

	"media-ingest/internal/mediatypes"
)

// DefaultMaxPixels bounds width*height of accepted images. A 40MP image is
// ~160MB once decoded to NRGBA.
const DefaultMaxPixels = 40_000_000

var (
	// ErrEmpty is returned for zero-length input.
	ErrEmpty = errors.New("empty upload")
	// ErrDisallowedType is returned when the sniffed type is outside the allow-list.
	ErrDisallowedType = errors.New("disallowed content type")
	// ErrTypeMismatch is returned when sniffing and decoding disagree.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrImageTooLarge is returned when the decoded header exceeds the pixel ceiling.
	ErrImageTooLarge = errors.New("image dimensions too large")
)

// Result describes a verified image.
type Result struct {
	Type     mediatypes.ImageType
	MimeType string
	Width    int
	Height   int
}

// Verifier inspects candidate uploads. It has no side effects.
type Verifier struct {
	maxPixels int
}

// New creates a Verifier. maxPixels <= 0 uses DefaultMaxPixels.
func New(maxPixels int) *Verifier {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Verifier{maxPixels: maxPixels}
}

// Sniff returns the MIME type detected from the byte signature alone.
func Sniff(data []byte) string {
	return mimetype.Detect(data).String()
}

// Verify checks that data sniffs and decodes as the same allowed image type.
func (v *Verifier) Verify(data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, ErrEmpty
	}

	sniffed := Sniff(data)
	sniffedType := mediatypes.FromMimeType(sniffed)
	if !sniffedType.IsAllowed() {
		return Result{MimeType: sniffed}, fmt.Errorf("%w: %s", ErrDisallowedType, sniffed)
	}

	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// Signature of an image but not decodable as one: treat as a disguised payload.
		return Result{MimeType: sniffed}, fmt.Errorf("%w: sniffed %s, header decode failed: %v", ErrTypeMismatch, sniffed, err)
	}

	decodedType := mediatypes.FromFormatName(format)
	if decodedType != sniffedType {
		return Result{MimeType: sniffed}, fmt.Errorf("%w: sniffed %s, decoded %s", ErrTypeMismatch, sniffedType, format)
	}

	result := Result{
		Type:     sniffedType,
		MimeType: sniffedType.MimeType(),
		Width:    config.Width,
		Height:   config.Height,
	}

	if config.Width <= 0 || config.Height <= 0 {
		return result, fmt.Errorf("%w: %s reports %dx%d", ErrTypeMismatch, format, config.Width, config.Height)
	}
	if int64(config.Width)*int64(config.Height) > int64(v.maxPixels) {
		return result, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, config.Width, config.Height, v.maxPixels)
	}

	return result, nil
}
