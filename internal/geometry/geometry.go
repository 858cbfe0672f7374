package geometry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Mode selects how a source is laid out inside a target box.
type Mode string

const (
	// Contain fits the whole source inside the box.
	Contain Mode = "contain"
	// Cover fills the box and crops the excess.
	Cover Mode = "cover"
)

var (
	// ErrUnknownMode is returned for a layout mode other than contain or cover.
	ErrUnknownMode = errors.New("unknown layout mode")
	// ErrInvalidDimension is returned for negative or non-numeric dimensions,
	// or an empty source.
	ErrInvalidDimension = errors.New("invalid dimension")
)

// ParseMode converts a configured mode name. Unknown names are an error.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Contain:
		return Contain, nil
	case Cover:
		return Cover, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Dimension is a target edge length in pixels. Auto means the edge is
// derived from the source aspect ratio at resize time.
type Dimension int

// Auto marks a dimension to be derived from the source.
const Auto Dimension = 0

// IsAuto reports whether the dimension is derived from the source.
func (d Dimension) IsAuto() bool {
	return d == Auto
}

func (d Dimension) String() string {
	if d.IsAuto() {
		return "auto"
	}
	return strconv.Itoa(int(d))
}

// ParseDimension accepts a positive integer or "auto".
func ParseDimension(s string) (Dimension, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "auto") {
		return Auto, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDimension, s)
	}
	return Dimension(n), nil
}

// Rect is an axis-aligned rectangle in pixel space.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Plan is the pair of rectangles that maps a source region onto a region of
// the target box.
type Plan struct {
	Src Rect
	Dst Rect
	// Width and Height are the size of the target box.
	Width  int
	Height int
}

// Letterboxed reports whether the destination does not cover the whole box.
func (p Plan) Letterboxed() bool {
	return p.Dst != Rect{W: p.Width, H: p.Height}
}

// ResolveTarget resolves auto dimensions against the source aspect ratio.
// If both are auto the source size is returned unchanged.
func ResolveTarget(srcW, srcH int, w, h Dimension) (int, int, error) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0, fmt.Errorf("%w: source %dx%d", ErrInvalidDimension, srcW, srcH)
	}
	if w < 0 || h < 0 {
		return 0, 0, fmt.Errorf("%w: target %sx%s", ErrInvalidDimension, w, h)
	}

	switch {
	case w.IsAuto() && h.IsAuto():
		return srcW, srcH, nil
	case w.IsAuto():
		return atLeastOne(roundDiv(int64(srcW)*int64(h), int64(srcH))), int(h), nil
	case h.IsAuto():
		return int(w), atLeastOne(roundDiv(int64(srcH)*int64(w), int64(srcW))), nil
	default:
		return int(w), int(h), nil
	}
}

// Compute returns the crop/scale plan for a srcW x srcH source rendered into
// a concrete w x h box. Offsets are rounded to the nearest pixel.
func Compute(srcW, srcH, w, h int, mode Mode) (Plan, error) {
	if srcW <= 0 || srcH <= 0 || w <= 0 || h <= 0 {
		return Plan{}, fmt.Errorf("%w: source %dx%d, target %dx%d", ErrInvalidDimension, srcW, srcH, w, h)
	}
	if mode != Contain && mode != Cover {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	full := Rect{W: srcW, H: srcH}
	box := Rect{W: w, H: h}
	plan := Plan{Src: full, Dst: box, Width: w, Height: h}

	// Cross-multiplied aspect comparison: srcW/srcH against w/h.
	srcWide := int64(srcW) * int64(h)
	boxWide := int64(srcH) * int64(w)

	if srcWide == boxWide {
		return plan, nil
	}

	sourceWider := srcWide > boxWide

	switch mode {
	case Contain:
		if sourceWider {
			dh := clamp(roundDiv(int64(srcH)*int64(w), int64(srcW)), h)
			plan.Dst = Rect{X: 0, Y: roundDiv(int64(h-dh), 2), W: w, H: dh}
		} else {
			dw := clamp(roundDiv(int64(srcW)*int64(h), int64(srcH)), w)
			plan.Dst = Rect{X: roundDiv(int64(w-dw), 2), Y: 0, W: dw, H: h}
		}
	case Cover:
		if sourceWider {
			cw := clamp(roundDiv(int64(srcH)*int64(w), int64(h)), srcW)
			plan.Src = Rect{X: roundDiv(int64(srcW-cw), 2), Y: 0, W: cw, H: srcH}
		} else {
			ch := clamp(roundDiv(int64(srcW)*int64(h), int64(w)), srcH)
			plan.Src = Rect{X: 0, Y: roundDiv(int64(srcH-ch), 2), W: srcW, H: ch}
		}
	}

	return plan, nil
}

// PlanFor resolves auto dimensions and computes the plan in one step.
func PlanFor(srcW, srcH int, w, h Dimension, mode Mode) (Plan, error) {
	tw, th, err := ResolveTarget(srcW, srcH, w, h)
	if err != nil {
		return Plan{}, err
	}
	return Compute(srcW, srcH, tw, th, mode)
}

// roundDiv divides non-negative num by positive den, rounding half up.
func roundDiv(num, den int64) int {
	return int((2*num + den) / (2 * den))
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func clamp(n, limit int) int {
	if n > limit {
		return limit
	}
	return atLeastOne(n)
}
