// Package linsolve solves dense linear systems A*x = b.
package linsolve

import (
	"errors"
	"fmt"
	"math"
)

// PivotEpsilon is the smallest pivot magnitude accepted before a system is
// reported as singular.
const PivotEpsilon = 1e-12

// ErrSingular is returned when a system has no unique solution.
var ErrSingular = errors.New("singular matrix")

// ShapeError reports malformed solver input. It indicates a caller bug rather
// than a degenerate geometry.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string {
	return "linsolve: invalid shape: " + e.Reason
}

// SingularError carries the pivot column at which elimination stopped.
type SingularError struct {
	Column int
	Pivot  float64
}

func (e *SingularError) Error() string {
	return fmt.Sprintf("linsolve: singular matrix at column %d (pivot %g)", e.Column, e.Pivot)
}

// Is lets errors.Is(err, ErrSingular) match.
func (e *SingularError) Is(target error) bool { return target == ErrSingular }

// Solve solves a*x = b by Gauss-Jordan elimination with partial pivoting.
// a has n rows of m columns (n >= m) and b has n entries. The inputs are not
// modified. The returned slice has m entries in column order.
func Solve(a [][]float64, b []float64) ([]float64, error) {
	n, m, err := checkShape(a, b)
	if err != nil {
		return nil, err
	}

	aug := augment(a, b, n, m)
	for col := range m {
		if err := pivotAndNormalize(aug, col, m); err != nil {
			return nil, err
		}
		eliminateColumn(aug, col, m)
	}

	x := make([]float64, m)
	for i := range m {
		x[i] = aug[i][m]
	}
	return x, nil
}

func checkShape(a [][]float64, b []float64) (int, int, error) {
	n := len(a)
	if n == 0 {
		return 0, 0, &ShapeError{Reason: "no rows"}
	}
	if len(b) != n {
		return 0, 0, &ShapeError{Reason: fmt.Sprintf("rhs has %d entries, want %d", len(b), n)}
	}
	m := len(a[0])
	if m == 0 {
		return 0, 0, &ShapeError{Reason: "no columns"}
	}
	for i, row := range a {
		if len(row) != m {
			return 0, 0, &ShapeError{Reason: fmt.Sprintf("row %d has %d columns, want %d", i, len(row), m)}
		}
	}
	if m > n {
		return 0, 0, &ShapeError{Reason: fmt.Sprintf("underdetermined system (%d rows, %d columns)", n, m)}
	}
	return n, m, nil
}

// augment copies [a | b] into a fresh n x (m+1) matrix.
func augment(a [][]float64, b []float64, n, m int) [][]float64 {
	aug := make([][]float64, n)
	for i := range n {
		row := make([]float64, m+1)
		copy(row, a[i])
		row[m] = b[i]
		aug[i] = row
	}
	return aug
}

func pivotAndNormalize(aug [][]float64, col, m int) error {
	pivotRow, maxAbs := findPivotRow(aug, col)
	if maxAbs < PivotEpsilon || math.IsNaN(maxAbs) {
		return &SingularError{Column: col, Pivot: maxAbs}
	}
	if pivotRow != col {
		aug[col], aug[pivotRow] = aug[pivotRow], aug[col]
	}
	normalizeRow(aug[col], col, m)
	return nil
}

// findPivotRow returns the row at or below col with the largest magnitude in
// column col, together with that magnitude.
func findPivotRow(aug [][]float64, col int) (int, float64) {
	pivotRow := col
	maxAbs := math.Abs(aug[col][col])
	for r := col + 1; r < len(aug); r++ {
		if v := math.Abs(aug[r][col]); v > maxAbs {
			maxAbs = v
			pivotRow = r
		}
	}
	return pivotRow, maxAbs
}

func normalizeRow(row []float64, col, m int) {
	div := row[col]
	for c := col; c <= m; c++ {
		row[c] /= div
	}
	row[col] = 1
}

func eliminateColumn(aug [][]float64, col, m int) {
	pivot := aug[col]
	for r, row := range aug {
		if r == col {
			continue
		}
		factor := row[col]
		if factor == 0 {
			continue
		}
		for c := col; c <= m; c++ {
			row[c] -= factor * pivot[c]
		}
	}
}
