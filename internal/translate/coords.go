// File: internal/translate/coords.go

// Package translate converts provider-native coordinates into viewport
// pixel space. Two coordinate units exist in the wild: the normalized
// 0-1000 grid some vision models emit regardless of screenshot size,
// and plain viewport pixels. Everything downstream of this package
// works in pixels only.
package translate

import (
	"fmt"
	"math"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// Unit identifies the coordinate system a raw point was expressed in.
type Unit string

const (
	// UnitPixel: coordinates are already viewport pixels.
	UnitPixel Unit = "pixel"
	// UnitNormalized1000: both axes span 0-1000 independent of the
	// actual viewport dimensions.
	UnitNormalized1000 Unit = "normalized_1000"
)

// normalizedSpan is the inclusive maximum of the normalized grid.
const normalizedSpan = 1000.0

// Translator scales and clamps raw provider points into one viewport.
type Translator struct {
	vp schemas.Viewport

	// tolerancePx is how far outside the viewport (in pixels, after
	// scaling) a point may land and still be clamped to the nearest
	// edge. Overshoot beyond this is a hard coordinate error.
	tolerancePx float64
}

// New builds a Translator for vp. tolerancePx <= 0 disables clamping
// slack entirely so any out-of-bounds point is an error.
func New(vp schemas.Viewport, tolerancePx float64) *Translator {
	if tolerancePx < 0 {
		tolerancePx = 0
	}
	return &Translator{vp: vp, tolerancePx: tolerancePx}
}

// Viewport returns the viewport this translator resolves against.
func (t *Translator) Viewport() schemas.Viewport { return t.vp }

// ToViewport converts p from unit into pixel space. In-bounds points
// map deterministically; points within the tolerance band are clamped
// to the nearest edge; anything further out returns a
// coordinate_out_of_range error and no point.
func (t *Translator) ToViewport(p schemas.Point, unit Unit) (schemas.Point, error) {
	var px schemas.Point
	switch unit {
	case UnitPixel:
		px = p
	case UnitNormalized1000:
		px = schemas.Point{
			X: p.X / normalizedSpan * float64(t.vp.Width),
			Y: p.Y / normalizedSpan * float64(t.vp.Height),
		}
	default:
		return schemas.Point{}, schemas.NewTaskError(schemas.ReasonUnsupportedInstruction,
			"translate", fmt.Errorf("unknown coordinate unit %q", unit))
	}

	x, err := t.clampAxis(px.X, float64(t.vp.Width), "x")
	if err != nil {
		return schemas.Point{}, err
	}
	y, err := t.clampAxis(px.Y, float64(t.vp.Height), "y")
	if err != nil {
		return schemas.Point{}, err
	}
	return schemas.Point{X: x, Y: y}, nil
}

func (t *Translator) clampAxis(v, span float64, axis string) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, schemas.NewTaskError(schemas.ReasonCoordinateOutOfRange,
			"translate", fmt.Errorf("%s coordinate is not finite", axis))
	}
	max := span - 1
	if max < 0 {
		max = 0
	}
	switch {
	case v < 0:
		if -v > t.tolerancePx {
			return 0, t.rangeErr(axis, v, span)
		}
		return 0, nil
	case v > span:
		if v-span > t.tolerancePx {
			return 0, t.rangeErr(axis, v, span)
		}
		return max, nil
	case v > max:
		// The span itself is addressable: the grid maximum scales to
		// exactly span and must land on the last pixel even with zero
		// tolerance.
		return max, nil
	default:
		return v, nil
	}
}

func (t *Translator) rangeErr(axis string, v, span float64) error {
	return schemas.NewTaskError(schemas.ReasonCoordinateOutOfRange, "translate",
		fmt.Errorf("%s=%.1f outside viewport span %.0f (tolerance %.0fpx)", axis, v, span, t.tolerancePx))
}
