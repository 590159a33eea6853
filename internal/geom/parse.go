package geom

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePoint parses "x,y" (surrounding spaces allowed).
func ParsePoint(s string) (Point, error) {
	xs, ys, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return Point{}, fmt.Errorf("invalid point %q: want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return Point{X: x, Y: y}, nil
}

// ParsePoints parses a whitespace or semicolon separated list of "x,y" pairs,
// e.g. "0,0 10,0 10,10 0,10".
func ParsePoints(s string) ([]Point, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	pts := make([]Point, 0, len(fields))
	for _, f := range fields {
		p, err := ParsePoint(f)
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

// ParseQuad parses exactly four points.
func ParseQuad(s string) ([4]Point, error) {
	var quad [4]Point
	pts, err := ParsePoints(s)
	if err != nil {
		return quad, err
	}
	if len(pts) != 4 {
		return quad, fmt.Errorf("quad needs 4 points, got %d", len(pts))
	}
	copy(quad[:], pts)
	return quad, nil
}
