package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"media-ingest/internal/geometry"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
)

// ErrWriteFailed wraps destination errors.
var ErrWriteFailed = errors.New("rendition write failed")

// Default quality presets. The original keeps more detail than the resized
// renditions.
const (
	DefaultOriginalQuality = 90
	DefaultResizeQuality   = 82
)

// Destination stores encoded renditions for a single ingestion attempt.
type Destination interface {
	// Write stores data under the rendition name and returns the path
	// relative to the storage base directory.
	Write(name string, data []byte) (string, error)
}

// Qualities holds the encode quality presets.
type Qualities struct {
	Original int
	Resize   int
}

// DefaultQualities returns the standard presets.
func DefaultQualities() Qualities {
	return Qualities{
		Original: DefaultOriginalQuality,
		Resize:   DefaultResizeQuality,
	}
}

// Job is the input to Generate.
type Job struct {
	Data  []byte
	Type  mediatypes.ImageType
	Sizes mediatypes.SizeSet
	Dest  Destination
	Log   logging.Scope
}

// Output is the result of a generation run. Renditions always holds the
// original plus one entry per requested size; Failures lists the sizes that
// were replaced by the original.
type Output struct {
	Renditions map[string]mediatypes.Rendition
	Failures   map[string]error
	// Order lists rendition names in the order they were produced.
	Order []string
}

// Fallbacks returns the names that were substituted with the original.
func (o *Output) Fallbacks() []string {
	var names []string
	for _, name := range o.Order {
		if _, failed := o.Failures[name]; failed {
			names = append(names, name)
		}
	}
	return names
}

// Generator turns one source into the original plus a set of named sizes.
type Generator struct {
	transcoder *Transcoder
	quality    Qualities
}

// NewGenerator creates a Generator.
func NewGenerator(transcoder *Transcoder, quality Qualities) *Generator {
	return &Generator{
		transcoder: transcoder,
		quality:    quality,
	}
}

// Generate decodes the source, writes the canonical original and then each
// requested size in order. The original is mandatory: any error producing it
// is returned and no sizes are attempted. A failing size is recorded in
// Output.Failures and replaced by the original's metadata.
func (g *Generator) Generate(ctx context.Context, job Job) (*Output, error) {
	src, err := g.transcoder.Decode(job.Data, job.Type)
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	original, err := g.writeOriginal(job, src)
	if err != nil {
		return nil, err
	}
	job.Log.Debug("original written: %s (%d bytes, %dx%d)", original.RelativePath, original.ByteSize, srcW, srcH)

	out := &Output{
		Renditions: map[string]mediatypes.Rendition{mediatypes.OriginalName: original},
		Failures:   make(map[string]error),
		Order:      []string{mediatypes.OriginalName},
	}

	for _, spec := range job.Sizes {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		rendition, err := g.writeSize(job, src, srcW, srcH, spec)
		if err != nil {
			job.Log.Warn("rendition %q failed, using original: %v", spec.Name, err)
			metrics.RenditionsTotal.WithLabelValues("fallback").Inc()

			rendition = original
			rendition.Name = spec.Name
			rendition.Mode = mediatypes.ModeOriginal
			out.Failures[spec.Name] = err
		} else {
			metrics.RenditionsTotal.WithLabelValues("success").Inc()
		}

		out.Renditions[spec.Name] = rendition
		out.Order = append(out.Order, spec.Name)
	}

	return out, nil
}

func (g *Generator) writeOriginal(job Job, src *image.NRGBA) (mediatypes.Rendition, error) {
	data, err := g.transcoder.EncodeSource(job.Data, job.Type, src, g.quality.Original)
	if err != nil {
		return mediatypes.Rendition{}, err
	}

	path, err := job.Dest.Write(mediatypes.OriginalName, data)
	if err != nil {
		return mediatypes.Rendition{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	bounds := src.Bounds()
	return mediatypes.Rendition{
		Name:         mediatypes.OriginalName,
		RelativePath: path,
		ByteSize:     int64(len(data)),
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		Mode:         mediatypes.ModeOriginal,
	}, nil
}

// writeSize resolves auto dimensions against the original, never against a
// previously produced size.
func (g *Generator) writeSize(job Job, src *image.NRGBA, srcW, srcH int, spec mediatypes.SizeSpec) (mediatypes.Rendition, error) {
	start := time.Now()
	defer func() {
		metrics.RenditionDuration.Observe(time.Since(start).Seconds())
	}()

	plan, err := geometry.PlanFor(srcW, srcH, spec.Width, spec.Height, spec.Mode)
	if err != nil {
		return mediatypes.Rendition{}, err
	}

	bitmap, err := g.transcoder.Render(src, plan)
	if err != nil {
		return mediatypes.Rendition{}, err
	}

	data, err := g.transcoder.Encode(bitmap, g.quality.Resize)
	if err != nil {
		return mediatypes.Rendition{}, err
	}

	path, err := job.Dest.Write(spec.Name, data)
	if err != nil {
		return mediatypes.Rendition{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	job.Log.Debug("rendition %q written: %s (%dx%d %s, src %+v, dst %+v)",
		spec.Name, path, plan.Width, plan.Height, spec.Mode, plan.Src, plan.Dst)

	return mediatypes.Rendition{
		Name:         spec.Name,
		RelativePath: path,
		ByteSize:     int64(len(data)),
		Width:        plan.Width,
		Height:       plan.Height,
		Mode:         string(spec.Mode),
	}, nil
}
