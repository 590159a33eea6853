package elevation

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/homography"
)

// Warning texts shown to the user.
const (
	WarnMissingHeight = "assign a height arrow to compute the elevation"
	WarnMissingShadow = "assign a shadow arrow to compute the elevation"
	WarnNoAngle       = "elevation angle is undefined for the current measurements"
	WarnNonConvex     = "ground plane quadrilateral is not convex; check the corner order"
)

// Calculator runs the elevation policy. The zero value is ready to use.
// A Calculator holds no state between calls and is safe for concurrent use.
type Calculator struct {
	// CornerTolerance is passed to geom.QuadCorners (<= 0 selects the default).
	CornerTolerance float64
	// WarnOnAuto reports warnings for automatic recomputations as well.
	WarnOnAuto bool
	// Logger receives a debug record per computation (nil = slog.Default()).
	Logger *slog.Logger
}

type warnings struct {
	enabled bool
	list    []string
}

func (w *warnings) add(format string, args ...any) {
	if w.enabled {
		w.list = append(w.list, fmt.Sprintf(format, args...))
	}
}

// Compute evaluates in. explicit marks a user-requested computation; only
// those collect warnings unless WarnOnAuto is set. Compute never panics on
// degenerate geometry: every failed precondition yields a nil Result or an
// uncorrected one.
func (c Calculator) Compute(in Input, explicit bool) Outcome {
	w := &warnings{enabled: explicit || c.WarnOnAuto}
	out := Outcome{}

	if in.Height == nil || in.Shadow == nil {
		if in.Height == nil {
			w.add(WarnMissingHeight)
		}
		if in.Shadow == nil {
			w.add(WarnMissingShadow)
		}
		out.Warnings = w.list
		return out
	}

	res := Result{
		HeightPixels: in.Height.Length(),
		ShadowPixels: in.Shadow.Length(),
		ScaleFactor:  1,
	}
	res.ShadowCorrected = res.ShadowPixels

	if in.Ground != nil {
		corrected, quad, err := c.correctShadow(*in.Ground, *in.Shadow)
		if quad != nil {
			out.Quad = quad
			if !quad.Convex {
				w.add(WarnNonConvex)
			}
		}
		switch {
		case err != nil:
			w.add("perspective correction skipped: %v", err)
		case res.ShadowPixels > 0:
			res.ShadowCorrected = corrected
			res.ScaleFactor = corrected / res.ShadowPixels
			res.PerspectiveApplied = true
		}
	}

	switch {
	case in.OverrideHeight > 0 && !math.IsInf(in.OverrideHeight, 0):
		res.HeightUsed = in.OverrideHeight
		res.HeightSource = HeightActual
	case res.PerspectiveApplied:
		res.HeightUsed = res.HeightPixels * res.ScaleFactor
		res.HeightSource = HeightScaledPixel
	default:
		res.HeightUsed = res.HeightPixels
		res.HeightSource = HeightPixel
	}

	angle, ok := angleDegrees(res.HeightUsed, res.ShadowCorrected)
	if !ok {
		w.add(WarnNoAngle)
		out.Warnings = w.list
		c.logger().Debug("elevation unavailable",
			"height", res.HeightUsed, "shadow", res.ShadowCorrected, "explicit", explicit)
		return out
	}
	res.AngleDegrees = angle
	out.Result = &res
	out.Warnings = w.list

	c.logger().Debug("elevation computed",
		"angle_deg", res.AngleDegrees,
		"height_source", res.HeightSource,
		"perspective", res.PerspectiveApplied,
		"scale", res.ScaleFactor,
		"explicit", explicit)
	return out
}

// correctShadow measures the shadow arrow in the canonical unit square of
// the ground polygon. The returned QuadInfo is set whenever four corners
// could be extracted.
func (c Calculator) correctShadow(ground Polygon, shadow Arrow) (float64, *geom.QuadInfo, error) {
	quad, err := geom.QuadCorners(ground.Points, c.CornerTolerance)
	if err != nil {
		return 0, nil, err
	}
	info := geom.DescribeQuad(quad)

	h, err := homography.ToUnitSquare(quad)
	if err != nil {
		return 0, &info, err
	}
	start, err := homography.Apply(h, shadow.Start)
	if err != nil {
		return 0, &info, fmt.Errorf("shadow start: %w", err)
	}
	end, err := homography.Apply(h, shadow.End)
	if err != nil {
		return 0, &info, fmt.Errorf("shadow end: %w", err)
	}
	d := geom.Dist(start, end)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, &info, homography.ErrDegenerateMapping
	}
	return d, &info, nil
}

// angleDegrees returns atan(height/shadow) in degrees. ok is false when an
// operand is non-positive or non-finite.
func angleDegrees(height, shadow float64) (float64, bool) {
	if !(height > 0) || !(shadow > 0) || math.IsInf(height, 0) || math.IsInf(shadow, 0) {
		return 0, false
	}
	a := math.Atan(height/shadow) * 180 / math.Pi
	if math.IsNaN(a) {
		return 0, false
	}
	return a, true
}

func (c Calculator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
