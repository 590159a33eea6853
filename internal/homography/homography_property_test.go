package homography

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/geomeasure/internal/geom"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// perturbedSquare returns a 100x100 square offset by (ox, oy) whose corners
// are moved by d. Offsets below 25 keep the quad convex.
func perturbedSquare(ox, oy float64, d []float64) []geom.Point {
	return []geom.Point{
		{X: ox + d[0], Y: oy + d[1]},
		{X: ox + 100 + d[2], Y: oy + d[3]},
		{X: ox + 100 + d[4], Y: oy + 100 + d[5]},
		{X: ox + d[6], Y: oy + 100 + d[7]},
	}
}

func genOffsets() gopter.Gen {
	return gen.SliceOfN(8, gen.Float64Range(-20, 20))
}

func TestCompute_MapsCornersProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("computed homography maps every source corner onto the unit square", prop.ForAll(
		func(ox, oy float64, d []float64) bool {
			src := perturbedSquare(ox, oy, d)
			h, err := Compute(src, UnitSquare[:])
			if err != nil {
				return false
			}
			for i, p := range src {
				q, err := Apply(h, p)
				if err != nil {
					return false
				}
				if math.Abs(q.X-UnitSquare[i].X) > 1e-6 || math.Abs(q.Y-UnitSquare[i].Y) > 1e-6 {
					return false
				}
			}
			return h[2][2] == 1
		},
		gen.Float64Range(-500, 500),
		gen.Float64Range(-500, 500),
		genOffsets(),
	))

	properties.TestingRun(t)
}

func TestInverse_RoundTripProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("inverse maps unit square points back into the source quad", prop.ForAll(
		func(d []float64, u, v float64) bool {
			src := perturbedSquare(0, 0, d)
			h, err := ToUnitSquare([4]geom.Point(src))
			if err != nil {
				return false
			}
			inv, err := Inverse(h)
			if err != nil {
				return false
			}
			p, err := Apply(inv, geom.Point{X: u, Y: v})
			if err != nil {
				return false
			}
			q, err := Apply(h, p)
			if err != nil {
				return false
			}
			return math.Abs(q.X-u) < 1e-6 && math.Abs(q.Y-v) < 1e-6
		},
		genOffsets(),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestFit_AgreesWithComputeProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("least-squares fit over exact matches reproduces the four-point solution", prop.ForAll(
		func(d []float64) bool {
			src := perturbedSquare(0, 0, d)
			h, err := Compute(src, UnitSquare[:])
			if err != nil {
				return false
			}
			var matches []Match
			for _, x := range []float64{0, 25, 50, 75, 100} {
				for _, y := range []float64{0, 50, 100} {
					s := geom.Point{X: x, Y: y}
					dst, err := Apply(h, s)
					if err != nil {
						return false
					}
					matches = append(matches, Match{Src: s, Dst: dst})
				}
			}
			fit, err := Fit(matches)
			if err != nil {
				return false
			}
			rms, err := ReprojectionError(fit, matches)
			return err == nil && rms < 1e-8
		},
		genOffsets(),
	))

	properties.TestingRun(t)
}
