package geom

import (
	"errors"
	"math"
)

// DefaultCornerTolerance is the distance under which consecutive polygon
// points are treated as the same corner.
const DefaultCornerTolerance = 1e-3

// ErrInsufficientCorners is returned when a polygon has fewer than four
// distinct corners.
var ErrInsufficientCorners = errors.New("polygon has fewer than 4 distinct corners")

// QuadCorners returns the first four distinct points of a closed polygon in
// drawn order. Consecutive duplicates and a closing point equal to the first
// point (within tol) are skipped. tol <= 0 selects DefaultCornerTolerance.
func QuadCorners(pts []Point, tol float64) ([4]Point, error) {
	var quad [4]Point
	if tol <= 0 {
		tol = DefaultCornerTolerance
	}

	distinct := dedupeClosed(pts, tol)
	if len(distinct) < 4 {
		return quad, ErrInsufficientCorners
	}
	copy(quad[:], distinct[:4])
	return quad, nil
}

func dedupeClosed(pts []Point, tol float64) []Point {
	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && Dist(out[len(out)-1], p) <= tol {
			continue
		}
		out = append(out, p)
	}
	// Drop the closing point(s) that return to the start.
	for len(out) > 1 && Dist(out[0], out[len(out)-1]) <= tol {
		out = out[:len(out)-1]
	}
	return out
}

// QuadInfo describes the shape of a quadrilateral. It is diagnostic only:
// callers accept non-convex or self-intersecting quads.
type QuadInfo struct {
	SignedArea float64 `json:"signed_area" yaml:"signed_area"`
	Convex     bool    `json:"convex" yaml:"convex"`
	Clockwise  bool    `json:"clockwise" yaml:"clockwise"`
}

// DescribeQuad computes the shoelace area and convexity of q.
func DescribeQuad(q [4]Point) QuadInfo {
	area := 0.0
	for i := range 4 {
		a, b := q[i], q[(i+1)%4]
		area += a.X*b.Y - b.X*a.Y
	}
	area /= 2

	pos, neg := 0, 0
	for i := range 4 {
		c := Cross(q[i], q[(i+1)%4], q[(i+2)%4])
		switch {
		case c > 0:
			pos++
		case c < 0:
			neg++
		}
	}

	return QuadInfo{
		SignedArea: area,
		Convex:     (pos == 4 || neg == 4) && math.Abs(area) > 0,
		// Image coordinates have y pointing down, so a positive shoelace sum
		// is clockwise on screen.
		Clockwise: area > 0,
	}
}

// Bounds returns the axis-aligned bounds of pts. ok is false for an empty
// slice.
func Bounds(pts []Point) (minP, maxP Point, ok bool) {
	if len(pts) == 0 {
		return Point{}, Point{}, false
	}
	minP, maxP = pts[0], pts[0]
	for _, p := range pts[1:] {
		minP.X = math.Min(minP.X, p.X)
		minP.Y = math.Min(minP.Y, p.Y)
		maxP.X = math.Max(maxP.X, p.X)
		maxP.Y = math.Max(maxP.Y, p.Y)
	}
	return minP, maxP, true
}
