package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"
	"time"

	// JPEG decoding goes through imaging for EXIF orientation
	_ "image/jpeg"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"

	"media-ingest/internal/geometry"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
)

var (
	// ErrUnsupportedFormat is returned for a type outside the closed set.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrCorruptImage is returned when bytes pass type checks but fail a full decode.
	ErrCorruptImage = errors.New("corrupt image")
	// ErrEncodeFailed is returned when the encoder rejects a bitmap.
	ErrEncodeFailed = errors.New("encode failure")
)

// Encoder encodes a bitmap to the canonical format at a quality of 0-100.
type Encoder interface {
	Encode(img image.Image, quality int) ([]byte, error)
}

// White is the default letterbox fill for opaque sources.
var White = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

type decodeFunc func(io.Reader) (image.Image, error)

var decoders = map[mediatypes.ImageType]decodeFunc{
	mediatypes.TypeJPEG: func(r io.Reader) (image.Image, error) {
		return imaging.Decode(r, imaging.AutoOrientation(true))
	},
	mediatypes.TypePNG:  png.Decode,
	mediatypes.TypeGIF:  gif.Decode,
	mediatypes.TypeWebP: webp.Decode,
}

// Transcoder decodes sources into NRGBA bitmaps, lays them out according to
// a geometry plan and encodes them to the canonical format.
type Transcoder struct {
	encoder    Encoder
	background color.NRGBA
}

// NewTranscoder creates a Transcoder. background fills letterbox bars when
// the source is fully opaque; sources with transparency get a transparent
// canvas instead.
func NewTranscoder(encoder Encoder, background color.NRGBA) *Transcoder {
	return &Transcoder{
		encoder:    encoder,
		background: background,
	}
}

// Decode decodes data with the decoder for kind. JPEGs are auto-oriented
// from EXIF; formats with alpha keep it, JPEG lands on an opaque canvas.
func (t *Transcoder) Decode(data []byte, kind mediatypes.ImageType) (*image.NRGBA, error) {
	decode, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, kind)
	}

	start := time.Now()
	img, err := decode(bytes.NewReader(data))
	metrics.ImageDecodeDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ImageDecodeErrors.WithLabelValues(string(kind)).Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptImage, kind, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		metrics.ImageDecodeErrors.WithLabelValues(string(kind)).Inc()
		return nil, fmt.Errorf("%w: %s decoded to %dx%d", ErrCorruptImage, kind, bounds.Dx(), bounds.Dy())
	}

	return imaging.Clone(img), nil
}

// Encode encodes img to the canonical format.
func (t *Transcoder) Encode(img image.Image, quality int) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty bitmap", ErrEncodeFailed)
	}
	if quality < 0 || quality > 100 {
		return nil, fmt.Errorf("%w: quality %d out of range", ErrEncodeFailed, quality)
	}

	start := time.Now()
	data, err := t.encoder.Encode(img, quality)
	metrics.ImageEncodeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: encoder produced no output", ErrEncodeFailed)
	}
	return data, nil
}

// EncodeSource produces the canonical bytes for an unmodified source. A
// source already in the canonical format is copied byte for byte.
func (t *Transcoder) EncodeSource(data []byte, kind mediatypes.ImageType, img image.Image, quality int) ([]byte, error) {
	if kind == mediatypes.Canonical {
		return bytes.Clone(data), nil
	}
	return t.Encode(img, quality)
}

// Render crops and scales src according to plan and returns a bitmap the
// size of the plan's target box.
func (t *Transcoder) Render(src *image.NRGBA, plan geometry.Plan) (*image.NRGBA, error) {
	if plan.Width <= 0 || plan.Height <= 0 || plan.Dst.W <= 0 || plan.Dst.H <= 0 {
		return nil, fmt.Errorf("%w: target %dx%d", ErrEncodeFailed, plan.Width, plan.Height)
	}

	start := time.Now()
	defer func() {
		metrics.ImageRenderDuration.Observe(time.Since(start).Seconds())
	}()

	region := src
	bounds := src.Bounds()
	if plan.Src != (geometry.Rect{W: bounds.Dx(), H: bounds.Dy()}) {
		region = imaging.Crop(src, image.Rect(plan.Src.X, plan.Src.Y, plan.Src.X+plan.Src.W, plan.Src.Y+plan.Src.H))
	}

	scaled := imaging.Resize(region, plan.Dst.W, plan.Dst.H, imaging.Lanczos)
	if !plan.Letterboxed() {
		return scaled, nil
	}

	fill := t.background
	if !src.Opaque() {
		fill = color.NRGBA{}
	}
	canvas := imaging.New(plan.Width, plan.Height, fill)
	return imaging.Paste(canvas, scaled, image.Pt(plan.Dst.X, plan.Dst.Y)), nil
}
