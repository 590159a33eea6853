package homography

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

func toDense(m Matrix) *mat.Dense {
	f := m.Flat()
	return mat.NewDense(3, 3, f[:])
}

func fromDense(d mat.Matrix) Matrix {
	var m Matrix
	for i := range 3 {
		for j := range 3 {
			m[i][j] = d.At(i, j)
		}
	}
	return m
}

// Inverse returns the transform mapping destination points back to source
// points, normalized so that element [2][2] is 1 where possible.
func Inverse(m Matrix) (Matrix, error) {
	if !m.Finite() {
		return Matrix{}, ErrNonFinite
	}
	var inv mat.Dense
	if err := inv.Inverse(toDense(m)); err != nil {
		return Matrix{}, fmt.Errorf("%w: %v", ErrNotInvertible, err)
	}
	out := Normalize(fromDense(&inv))
	if !out.Finite() {
		return Matrix{}, ErrNotInvertible
	}
	return out, nil
}
