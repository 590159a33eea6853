package elevation

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func angleFor(height, shadow float64) (float64, bool) {
	out := Calculator{}.Compute(Input{Height: vertical(0, 0, height), Shadow: horizontal(0, 0, shadow)}, false)
	if !out.Available() {
		return 0, false
	}
	return out.Result.AngleDegrees, true
}

func TestCompute_MonotonicInHeightProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a taller height arrow gives a steeper angle", prop.ForAll(
		func(h, dh, s float64) bool {
			a, ok1 := angleFor(h, s)
			b, ok2 := angleFor(h+dh, s)
			return ok1 && ok2 && b > a
		},
		gen.Float64Range(1, 1000),
		gen.Float64Range(1, 1000),
		gen.Float64Range(1, 1000),
	))

	properties.TestingRun(t)
}

func TestCompute_MonotonicInShadowProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a longer shadow gives a flatter angle", prop.ForAll(
		func(h, s, ds float64) bool {
			a, ok1 := angleFor(h, s)
			b, ok2 := angleFor(h, s+ds)
			return ok1 && ok2 && b < a
		},
		gen.Float64Range(1, 1000),
		gen.Float64Range(1, 1000),
		gen.Float64Range(1, 1000),
	))

	properties.TestingRun(t)
}

func TestCompute_AngleRangeProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("available angles lie strictly between 0 and 90 degrees", prop.ForAll(
		func(h, s float64) bool {
			a, ok := angleFor(h, s)
			return ok && a > 0 && a < 90
		},
		gen.Float64Range(0.01, 1e4),
		gen.Float64Range(0.01, 1e4),
	))

	properties.TestingRun(t)
}
