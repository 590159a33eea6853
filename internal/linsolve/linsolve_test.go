package linsolve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolve_Identity(t *testing.T) {
	a := make([][]float64, 8)
	b := make([]float64, 8)
	for i := range 8 {
		a[i] = make([]float64, 8)
		a[i][i] = 1
		b[i] = float64(i + 1)
	}

	x, err := Solve(a, b)
	require.NoError(t, err)
	for i, v := range x {
		assert.InDelta(t, float64(i+1), v, 1e-12, "x[%d]", i)
	}
}

func TestSolve_RequiresPivoting(t *testing.T) {
	// Zero on the leading diagonal forces a row swap.
	a := [][]float64{
		{0, 2, 1},
		{1, 1, 1},
		{2, 1, 3},
	}
	b := []float64{7, 6, 13}

	x, err := Solve(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, x[0], 1e-9)
	assert.InDelta(t, 2.0, x[1], 1e-9)
	assert.InDelta(t, 3.0, x[2], 1e-9)
}

func TestSolve_DoesNotModifyInput(t *testing.T) {
	a := [][]float64{{0, 1}, {1, 0}}
	b := []float64{3, 4}

	_, err := Solve(a, b)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 1}, {1, 0}}, a)
	assert.Equal(t, []float64{3, 4}, b)
}

func TestSolve_Singular(t *testing.T) {
	a := make([][]float64, 8)
	b := make([]float64, 8)
	for i := range 8 {
		a[i] = []float64{1, 1, 1, 1, 1, 1, 1, 1}
		b[i] = 1
	}

	_, err := Solve(a, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSingular))

	var se *SingularError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Column)
}

func TestSolve_NearSingularBelowFloor(t *testing.T) {
	a := [][]float64{
		{1, 1},
		{1, 1 + 1e-14},
	}
	_, err := Solve(a, []float64{1, 2})
	assert.ErrorIs(t, err, ErrSingular)
}

func TestSolve_ShapeErrors(t *testing.T) {
	tests := []struct {
		name string
		a    [][]float64
		b    []float64
	}{
		{"no rows", nil, nil},
		{"rhs length mismatch", [][]float64{{1, 0}, {0, 1}}, []float64{1}},
		{"short row", [][]float64{{1, 0}, {0}}, []float64{1, 2}},
		{"missing row", [][]float64{{1, 0}, nil}, []float64{1, 2}},
		{"empty columns", [][]float64{{}, {}}, []float64{1, 2}},
		{"underdetermined", [][]float64{{1, 2, 3}}, []float64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Solve(tt.a, tt.b)
			var se *ShapeError
			require.ErrorAs(t, err, &se)
			assert.NotEmpty(t, se.Reason)
			assert.False(t, errors.Is(err, ErrSingular))
		})
	}
}

func TestSolveLeastSquares_MatchesSolveOnSquareSystem(t *testing.T) {
	a := [][]float64{
		{4, -2, 1},
		{-2, 4, -2},
		{1, -2, 4},
	}
	b := []float64{11, -16, 17}

	exact, err := Solve(a, b)
	require.NoError(t, err)
	ls, err := SolveLeastSquares(a, b)
	require.NoError(t, err)

	for i := range exact {
		assert.InDelta(t, exact[i], ls[i], 1e-9)
	}
}

func TestSolveLeastSquares_Overdetermined(t *testing.T) {
	// Points on y = 2x + 1 with symmetric noise; the fit recovers the line.
	a := [][]float64{{0, 1}, {1, 1}, {2, 1}, {3, 1}}
	b := []float64{1.1, 2.9, 5.1, 6.9}

	x, err := SolveLeastSquares(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.96, x[0], 1e-9)
	assert.InDelta(t, 1.06, x[1], 1e-9)
}

func TestSolveLeastSquares_RankDeficient(t *testing.T) {
	a := [][]float64{{1, 2}, {2, 4}, {3, 6}}
	_, err := SolveLeastSquares(a, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrSingular)
}
