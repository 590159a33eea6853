package homography

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/linsolve"
)

// Match is a keypoint correspondence between two images.
type Match struct {
	Src geom.Point `json:"src" yaml:"src"`
	Dst geom.Point `json:"dst" yaml:"dst"`
}

// Fit estimates the homography mapping Src -> Dst over all matches. Exactly
// four matches give the exact solution of Compute; more are combined in a
// least-squares sense after Hartley normalisation of both point sets.
func Fit(matches []Match) (Matrix, error) {
	if len(matches) < 4 {
		return Matrix{}, ErrInsufficientPoints
	}
	src := make([]geom.Point, len(matches))
	dst := make([]geom.Point, len(matches))
	for i, m := range matches {
		src[i], dst[i] = m.Src, m.Dst
	}
	if !geom.AllFinite(src) || !geom.AllFinite(dst) {
		return Matrix{}, ErrNonFinite
	}
	if len(matches) == 4 {
		return Compute(src, dst)
	}

	ts, err := normalization(src)
	if err != nil {
		return Matrix{}, err
	}
	td, err := normalization(dst)
	if err != nil {
		return Matrix{}, err
	}

	a := make([][]float64, 0, 2*len(matches))
	b := make([]float64, 0, 2*len(matches))
	for i := range matches {
		s, _ := Apply(ts, src[i])
		d, _ := Apply(td, dst[i])
		ra, rb := dltRows(s, d)
		a = append(a, ra[0], ra[1])
		b = append(b, rb[0], rb[1])
	}

	h, err := linsolve.SolveLeastSquares(a, b)
	if err != nil {
		return Matrix{}, fmt.Errorf("fit homography: %w", err)
	}

	// H = Td^-1 * Hn * Ts
	tdInv, err := Inverse(td)
	if err != nil {
		return Matrix{}, err
	}
	return Normalize(Mul(Mul(tdInv, assemble(h)), ts)), nil
}

// normalization returns the similarity transform that moves the centroid of
// pts to the origin and scales the mean distance from it to sqrt(2).
func normalization(pts []geom.Point) (Matrix, error) {
	var c geom.Point
	for _, p := range pts {
		c = c.Add(p)
	}
	c = c.Scale(1 / float64(len(pts)))

	mean := 0.0
	for _, p := range pts {
		mean += geom.Dist(p, c)
	}
	mean /= float64(len(pts))
	if mean < DenominatorEpsilon {
		return Matrix{}, fmt.Errorf("fit homography: coincident points: %w", linsolve.ErrSingular)
	}

	s := math.Sqrt2 / mean
	return Matrix{
		{s, 0, -s * c.X},
		{0, s, -s * c.Y},
		{0, 0, 1},
	}, nil
}

// ReprojectionError returns the RMS distance between H(Src) and Dst.
func ReprojectionError(h Matrix, matches []Match) (float64, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	sum := 0.0
	for i, m := range matches {
		p, err := Apply(h, m.Src)
		if err != nil {
			return 0, &PointError{Index: i, Err: err}
		}
		d := geom.Dist(p, m.Dst)
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(matches))), nil
}
