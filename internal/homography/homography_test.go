package homography

import (
	"errors"
	"math"
	"testing"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/MeKo-Tech/geomeasure/internal/linsolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-6

func assertMatrixInDelta(t *testing.T, want, got Matrix, delta float64) {
	t.Helper()
	for i := range 3 {
		for j := range 3 {
			assert.InDelta(t, want[i][j], got[i][j], delta, "element [%d][%d]", i, j)
		}
	}
}

func TestCompute_IdentityOnUnitSquare(t *testing.T) {
	h, err := Compute(UnitSquare[:], UnitSquare[:])
	require.NoError(t, err)
	assertMatrixInDelta(t, Identity(), h, tol)

	for _, p := range []geom.Point{{X: 0.25, Y: 0.75}, {X: -3, Y: 12.5}, {X: 1e3, Y: -1e3}} {
		q, err := Apply(Identity(), p)
		require.NoError(t, err)
		assert.Equal(t, p, q)
	}
}

func TestCompute_RecoversKnownMatrix(t *testing.T) {
	want := Matrix{
		{1.2, 0.1, 15},
		{-0.05, 0.9, 30},
		{0.0004, -0.0002, 1},
	}
	src := []geom.Point{{X: 10, Y: 20}, {X: 400, Y: 35}, {X: 380, Y: 300}, {X: 25, Y: 280}}
	dst, err := ApplyAll(want, src)
	require.NoError(t, err)

	got, err := Compute(src, dst)
	require.NoError(t, err)
	assertMatrixInDelta(t, want, got, tol)
}

func TestCompute_FixedPoints(t *testing.T) {
	src := []geom.Point{{X: 120, Y: 340}, {X: 510, Y: 330}, {X: 620, Y: 470}, {X: 40, Y: 480}}

	h, err := ToUnitSquare([4]geom.Point(src))
	require.NoError(t, err)
	assert.Equal(t, 1.0, h[2][2])

	for i, s := range src {
		d, err := Apply(h, s)
		require.NoError(t, err)
		assert.InDelta(t, UnitSquare[i].X, d.X, tol, "corner %d x", i)
		assert.InDelta(t, UnitSquare[i].Y, d.Y, tol, "corner %d y", i)
	}
}

func TestCompute_UsesFirstFourPoints(t *testing.T) {
	src := []geom.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}, {X: math.NaN(), Y: 0}}
	dst := []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 9, Y: 9}}

	h, err := Compute(src, dst)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, h[0][0], tol)
	assert.InDelta(t, 0.5, h[1][1], tol)
}

func TestCompute_Errors(t *testing.T) {
	square := UnitSquare[:]

	tests := []struct {
		name string
		src  []geom.Point
		dst  []geom.Point
		want error
	}{
		{"too few source points", square[:3], square, ErrInsufficientPoints},
		{"too few destination points", square, square[:2], ErrInsufficientPoints},
		{"nil", nil, nil, ErrInsufficientPoints},
		{
			"NaN source",
			[]geom.Point{{X: math.NaN(), Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
			square, ErrNonFinite,
		},
		{
			"infinite destination",
			square,
			[]geom.Point{{X: 0, Y: 0}, {X: math.Inf(1), Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
			ErrNonFinite,
		},
		{
			"collinear source",
			[]geom.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}},
			square, linsolve.ErrSingular,
		},
		{
			"repeated source corner",
			[]geom.Point{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
			square, linsolve.ErrSingular,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.src, tt.dst)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestApply_DegenerateDenominator(t *testing.T) {
	// The vanishing line is x = 100: h31*x + h33 = 0.01*100 - 1 = 0.
	h := Matrix{{1, 0, 0}, {0, 1, 0}, {0.01, 0, -1}}

	_, err := Apply(h, geom.Point{X: 100, Y: 42})
	assert.ErrorIs(t, err, ErrDegenerateMapping)

	p, err := Apply(h, geom.Point{X: 50, Y: 10})
	require.NoError(t, err)
	assert.InDelta(t, -100, p.X, tol)
	assert.InDelta(t, -20, p.Y, tol)

	p, err = Apply(h, geom.Point{X: 200, Y: 10})
	require.NoError(t, err)
	assert.InDelta(t, 200, p.X, tol)
	assert.InDelta(t, 10, p.Y, tol)
}

func TestApply_NonFinite(t *testing.T) {
	_, err := Apply(Identity(), geom.Point{X: math.Inf(1), Y: 0})
	assert.ErrorIs(t, err, ErrNonFinite)

	h := Identity()
	h[0][0] = math.Inf(1)
	_, err = Apply(h, geom.Point{X: 1, Y: 1})
	assert.ErrorIs(t, err, ErrDegenerateMapping)

	h = Identity()
	h[2][2] = math.NaN()
	_, err = Apply(h, geom.Point{X: 1, Y: 1})
	assert.ErrorIs(t, err, ErrDegenerateMapping)
}

func TestApplyAll_ReportsIndex(t *testing.T) {
	h := Matrix{{1, 0, 0}, {0, 1, 0}, {0.01, 0, -1}}
	_, err := ApplyAll(h, []geom.Point{{X: 0, Y: 0}, {X: 100, Y: 0}})

	var pe *PointError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Index)
	assert.True(t, errors.Is(err, ErrDegenerateMapping))
}

func TestFlatRoundTrip(t *testing.T) {
	h := Matrix{{1, 2, 3}, {4, 5, 6}, {7, 8, 1}}
	assert.Equal(t, [9]float64{1, 2, 3, 4, 5, 6, 7, 8, 1}, h.Flat())
	assert.Equal(t, h, FromFlat(h.Flat()))
}

func TestInverse(t *testing.T) {
	h := Matrix{
		{1.2, 0.1, 15},
		{-0.05, 0.9, 30},
		{0.0004, -0.0002, 1},
	}
	inv, err := Inverse(h)
	require.NoError(t, err)
	assert.Equal(t, 1.0, inv[2][2])

	p := geom.Point{X: 123, Y: 77}
	q, err := Apply(h, p)
	require.NoError(t, err)
	back, err := Apply(inv, q)
	require.NoError(t, err)
	assert.InDelta(t, p.X, back.X, tol)
	assert.InDelta(t, p.Y, back.Y, tol)

	_, err = Inverse(Matrix{{1, 2, 3}, {2, 4, 6}, {0, 0, 1}})
	assert.ErrorIs(t, err, ErrNotInvertible)
}

func TestNormalize(t *testing.T) {
	h := Normalize(Matrix{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}})
	assertMatrixInDelta(t, Identity(), h, 1e-15)

	z := Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 0}}
	assert.Equal(t, z, Normalize(z))
}
