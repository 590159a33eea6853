package linsolve

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SolveLeastSquares returns the x minimising |a*x - b| for an n x m system
// with n >= m, using a QR factorisation. A rank-deficient a yields
// ErrSingular.
func SolveLeastSquares(a [][]float64, b []float64) ([]float64, error) {
	n, m, err := checkShape(a, b)
	if err != nil {
		return nil, err
	}

	data := make([]float64, 0, n*m)
	for _, row := range a {
		data = append(data, row...)
	}
	A := mat.NewDense(n, m, data)
	B := mat.NewDense(n, 1, append([]float64(nil), b...))

	var qr mat.QR
	qr.Factorize(A)

	var r mat.Dense
	qr.RTo(&r)
	for i := range m {
		if v := math.Abs(r.At(i, i)); v < PivotEpsilon || math.IsNaN(v) {
			return nil, &SingularError{Column: i, Pivot: v}
		}
	}

	var x mat.Dense
	if err := qr.SolveTo(&x, false, B); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("linsolve: ill-conditioned system: %w", ErrSingular)
		}
		return nil, fmt.Errorf("linsolve: least squares: %w", err)
	}

	out := make([]float64, m)
	for i := range m {
		out[i] = x.At(i, 0)
	}
	return out, nil
}
