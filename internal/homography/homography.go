// Package homography computes and applies 2D projective transforms.
//
// A homography is estimated from four point correspondences with the direct
// linear transform, fixing h33 = 1, and solved with linsolve. The same matrix
// maps pixel coordinates of a ground-plane quadrilateral into the canonical
// unit square, where Euclidean distances are free of perspective distortion.
package homography

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/linsolve"
)

// DenominatorEpsilon is the smallest homogeneous denominator Apply accepts.
const DenominatorEpsilon = 1e-12

var (
	// ErrInsufficientPoints is returned when fewer than 4 correspondences are given.
	ErrInsufficientPoints = errors.New("homography needs at least 4 point correspondences")
	// ErrNonFinite is returned when an input coordinate is NaN or infinite.
	ErrNonFinite = errors.New("non-finite coordinate")
	// ErrDegenerateMapping is returned when a point maps onto the vanishing line.
	ErrDegenerateMapping = errors.New("point maps to infinity")
	// ErrNotInvertible is returned by Inverse for singular matrices.
	ErrNotInvertible = errors.New("homography is not invertible")
)

// Matrix is a row-major 3x3 projective transform.
type Matrix [3][3]float64

// UnitSquare is the canonical destination for ground-plane correction.
var UnitSquare = [4]geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Flat returns the matrix as 9 values in row-major order.
func (m Matrix) Flat() [9]float64 {
	return [9]float64{m[0][0], m[0][1], m[0][2], m[1][0], m[1][1], m[1][2], m[2][0], m[2][1], m[2][2]}
}

// FromFlat builds a Matrix from 9 row-major values.
func FromFlat(v [9]float64) Matrix {
	return Matrix{{v[0], v[1], v[2]}, {v[3], v[4], v[5]}, {v[6], v[7], v[8]}}
}

// Finite reports whether every entry is a finite number.
func (m Matrix) Finite() bool {
	for _, row := range m {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Compute returns H mapping src[i] -> dst[i] for the first four points of each
// slice. Degenerate configurations (for example collinear source points)
// yield an error wrapping linsolve.ErrSingular.
func Compute(src, dst []geom.Point) (Matrix, error) {
	if len(src) < 4 || len(dst) < 4 {
		return Matrix{}, ErrInsufficientPoints
	}
	if !geom.AllFinite(src[:4]) || !geom.AllFinite(dst[:4]) {
		return Matrix{}, ErrNonFinite
	}

	a := make([][]float64, 0, 8)
	b := make([]float64, 0, 8)
	for i := range 4 {
		ra, rb := dltRows(src[i], dst[i])
		a = append(a, ra[0], ra[1])
		b = append(b, rb[0], rb[1])
	}

	h, err := linsolve.Solve(a, b)
	if err != nil {
		return Matrix{}, fmt.Errorf("solve homography: %w", err)
	}
	return assemble(h), nil
}

// dltRows emits the two equations contributed by one correspondence
// (x,y) -> (X,Y):
//
//	X = (h11 x + h12 y + h13) / (h31 x + h32 y + 1)
//	Y = (h21 x + h22 y + h23) / (h31 x + h32 y + 1)
func dltRows(s, d geom.Point) ([2][]float64, [2]float64) {
	x, y := s.X, s.Y
	X, Y := d.X, d.Y
	return [2][]float64{
		{x, y, 1, 0, 0, 0, -X * x, -X * y},
		{0, 0, 0, x, y, 1, -Y * x, -Y * y},
	}, [2]float64{X, Y}
}

func assemble(h []float64) Matrix {
	return Matrix{
		{h[0], h[1], h[2]},
		{h[3], h[4], h[5]},
		{h[6], h[7], 1},
	}
}

// ToUnitSquare returns the homography mapping quad onto UnitSquare.
func ToUnitSquare(quad [4]geom.Point) (Matrix, error) {
	return Compute(quad[:], UnitSquare[:])
}

// Apply maps p through m with perspective division.
func Apply(m Matrix, p geom.Point) (geom.Point, error) {
	if !p.Finite() {
		return geom.Point{}, ErrNonFinite
	}
	denom := m[2][0]*p.X + m[2][1]*p.Y + m[2][2]
	if math.IsNaN(denom) || math.IsInf(denom, 0) || math.Abs(denom) < DenominatorEpsilon {
		return geom.Point{}, ErrDegenerateMapping
	}
	out := geom.Point{
		X: (m[0][0]*p.X + m[0][1]*p.Y + m[0][2]) / denom,
		Y: (m[1][0]*p.X + m[1][1]*p.Y + m[1][2]) / denom,
	}
	if !out.Finite() {
		return geom.Point{}, ErrDegenerateMapping
	}
	return out, nil
}

// PointError reports which point of a batch failed to map.
type PointError struct {
	Index int
	Err   error
}

func (e *PointError) Error() string { return fmt.Sprintf("point %d: %v", e.Index, e.Err) }

func (e *PointError) Unwrap() error { return e.Err }

// ApplyAll maps every point and stops at the first failure.
func ApplyAll(m Matrix, pts []geom.Point) ([]geom.Point, error) {
	out := make([]geom.Point, len(pts))
	for i, p := range pts {
		q, err := Apply(m, p)
		if err != nil {
			return nil, &PointError{Index: i, Err: err}
		}
		out[i] = q
	}
	return out, nil
}

// Mul returns the product a*b.
func Mul(a, b Matrix) Matrix {
	var out Matrix
	for i := range 3 {
		for j := range 3 {
			for k := range 3 {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

// Normalize scales m so that m[2][2] = 1. Matrices with a vanishing m[2][2]
// are returned unchanged.
func Normalize(m Matrix) Matrix {
	s := m[2][2]
	if math.Abs(s) < DenominatorEpsilon {
		return m
	}
	for i := range 3 {
		for j := range 3 {
			m[i][j] /= s
		}
	}
	return m
}
