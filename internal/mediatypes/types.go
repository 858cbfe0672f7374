package mediatypes

import "strings"

// ImageType identifies one of the image formats the pipeline understands.
type ImageType string

const (
	// TypeJPEG is a JPEG/JFIF image.
	TypeJPEG ImageType = "jpeg"
	// TypePNG is a PNG image.
	TypePNG ImageType = "png"
	// TypeGIF is a GIF image. Only the first frame is kept.
	TypeGIF ImageType = "gif"
	// TypeWebP is a WebP image, the canonical storage format.
	TypeWebP ImageType = "webp"
	// TypeUnknown is anything else.
	TypeUnknown ImageType = ""
)

// Canonical is the format every rendition is stored in.
const Canonical = TypeWebP

// AllowedTypes is the closed set of accepted source formats.
var AllowedTypes = map[ImageType]bool{
	TypeJPEG: true,
	TypePNG:  true,
	TypeGIF:  true,
	TypeWebP: true,
}

// MimeTypes maps each image type to its MIME type.
var MimeTypes = map[ImageType]string{
	TypeJPEG: "image/jpeg",
	TypePNG:  "image/png",
	TypeGIF:  "image/gif",
	TypeWebP: "image/webp",
}

// Extensions maps each image type to the file extension used on disk.
var Extensions = map[ImageType]string{
	TypeJPEG: ".jpg",
	TypePNG:  ".png",
	TypeGIF:  ".gif",
	TypeWebP: ".webp",
}

// IsAllowed reports whether t is in the allow-list.
func (t ImageType) IsAllowed() bool {
	return AllowedTypes[t]
}

// SupportsAlpha reports whether the format can carry partial transparency.
func (t ImageType) SupportsAlpha() bool {
	return t == TypePNG || t == TypeGIF || t == TypeWebP
}

// MimeType returns the MIME type for t, or application/octet-stream.
func (t ImageType) MimeType() string {
	if mime, ok := MimeTypes[t]; ok {
		return mime
	}
	return "application/octet-stream"
}

// Extension returns the file extension for t including the leading dot.
func (t ImageType) Extension() string {
	return Extensions[t]
}

// FromMimeType maps a MIME type (parameters are ignored) to an ImageType.
// Returns TypeUnknown for anything outside the closed set.
func FromMimeType(mime string) ImageType {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	for t, m := range MimeTypes {
		if m == mime {
			return t
		}
	}
	return TypeUnknown
}

// FromFormatName maps an image.DecodeConfig format name to an ImageType.
func FromFormatName(name string) ImageType {
	t := ImageType(strings.ToLower(name))
	if t.IsAllowed() {
		return t
	}
	return TypeUnknown
}
