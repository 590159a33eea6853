package overlay

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
)

// DrawPolygon outlines a closed polygon.
func DrawPolygon(dst *image.NRGBA, pts []geom.Point, col color.NRGBA, thickness int) {
	if len(pts) < 2 {
		return
	}
	for i := range pts {
		DrawLine(dst, pts[i], pts[(i+1)%len(pts)], col, thickness)
	}
}

// DrawArrow draws a line from a to b with a head at b.
func DrawArrow(dst *image.NRGBA, a, b geom.Point, col color.NRGBA, thickness int) {
	DrawLine(dst, a, b, col, thickness)
	l := geom.Dist(a, b)
	if l < 1 {
		return
	}
	head := math.Min(12, l/3)
	angle := math.Atan2(a.Y-b.Y, a.X-b.X)
	for _, d := range []float64{-math.Pi / 7, math.Pi / 7} {
		tip := geom.Pt(b.X+head*math.Cos(angle+d), b.Y+head*math.Sin(angle+d))
		DrawLine(dst, b, tip, col, thickness)
	}
}

// DrawLine rasterises a segment with Bresenham's algorithm. The segment is
// clipped to dst first, so far off-canvas endpoints cost nothing.
func DrawLine(dst *image.NRGBA, a, b geom.Point, col color.NRGBA, thickness int) {
	if !a.Finite() || !b.Finite() {
		return
	}
	pad := float64(max(thickness, 1))
	r := dst.Bounds()
	a, b, ok := clipSegment(a, b,
		float64(r.Min.X)-pad, float64(r.Min.Y)-pad, float64(r.Max.X)+pad, float64(r.Max.Y)+pad)
	if !ok {
		return
	}
	x0, y0 := int(math.Round(a.X)), int(math.Round(a.Y))
	x1, y1 := int(math.Round(b.X)), int(math.Round(b.Y))
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// clipSegment clips a-b to the box [minX,maxX]x[minY,maxY] (Liang-Barsky).
// ok is false when the segment misses the box.
func clipSegment(a, b geom.Point, minX, minY, maxX, maxY float64) (geom.Point, geom.Point, bool) {
	// half steps stay finite for endpoints near the float64 limits
	dx, dy := b.X/2-a.X/2, b.Y/2-a.Y/2
	t0, t1 := 0.0, 2.0
	for _, e := range [4][2]float64{
		{-dx, a.X - minX},
		{dx, maxX - a.X},
		{-dy, a.Y - minY},
		{dy, maxY - a.Y},
	} {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return a, b, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			t0 = math.Max(t0, t)
		} else {
			t1 = math.Min(t1, t)
		}
		if t0 > t1 {
			return a, b, false
		}
	}
	return geom.Pt(a.X+t0*dx, a.Y+t0*dy), geom.Pt(a.X+t1*dx, a.Y+t1*dy), true
}

func drawThickPoint(dst *image.NRGBA, x, y int, col color.NRGBA, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	r := (thickness - 1) / 2
	b := dst.Bounds()
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(b) {
				dst.SetNRGBA(xx, yy, col)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
