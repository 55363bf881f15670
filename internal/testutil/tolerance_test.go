package testutil

import "testing"

func TestRequireHelpersAcceptGoodData(t *testing.T) {
	RequireFinite(t, []float64{0, 1, -1})
	RequireSafe32(t, []float32{0, 9.5, -10}, 10)
	RequireSliceNearlyEqual(t, []float64{1, 2}, []float64{1, 2 + 1e-12}, 1e-9)
}
